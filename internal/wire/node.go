package wire

// Node is a (Key, Address) pair identifying a reachable peer. Equality is by
// Key only: two Nodes with the same key but stale addresses are the same
// logical peer for set membership purposes.
type Node struct {
	Key  Key     `json:"key"`
	Addr Address `json:"addr"`
}

// Equal reports whether two nodes share a key.
func (n Node) Equal(other Node) bool {
	return n.Key.Equal(other.Key)
}

// Nodes is an ordered list of Node, the shape returned by neighbour-store
// queries and carried in Query/Search/ListNeighbours responses.
type Nodes []Node

// SenderNode is the (Key, port) pair carried inside request payloads. The IP
// is deliberately absent: the incoming pipeline reconstitutes the full Node
// by combining this with the IP observed on the connection.
type SenderNode struct {
	Key  Key    `json:"key"`
	Port uint16 `json:"port"`
}

// Command kipa-cli is a thin client over a running kipa-daemon's local IPC
// socket: it never touches internal/search, internal/envelope, or
// internal/neighbourstore directly, only internal/wire types and the Unix
// transport, preserving the daemon's external-collaborator boundary.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"kipa/internal/transport"
	"kipa/internal/transport/unix"
	"kipa/internal/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "kipa-cli:", err)
		os.Exit(1)
	}
}

func run() error {
	socket := pflag.String("socket", "./data/kipa.sock", "daemon's local IPC socket path")
	timeout := pflag.Duration("timeout", 10*time.Second, "request timeout")
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		return fmt.Errorf("usage: kipa-cli [--socket path] [--timeout d] <search key | connect key host:port | list-neighbours>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	body, err := requestFor(args)
	if err != nil {
		return err
	}

	resp, err := send(ctx, transport.Addr(*socket), body)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
	}

	return printResponse(args[0], resp)
}

func requestFor(args []string) (wire.RequestBody, error) {
	switch args[0] {
	case "search":
		if len(args) < 2 {
			return wire.RequestBody{}, fmt.Errorf("search requires a target fingerprint")
		}
		target := wire.Key{Fingerprint: args[1]}
		return wire.RequestBody{Version: "1", Kind: wire.KindSearch, Target: &target}, nil

	case "list-neighbours":
		return wire.RequestBody{Version: "1", Kind: wire.KindListNeighbours}, nil

	case "connect":
		if len(args) < 3 {
			return wire.RequestBody{}, fmt.Errorf("connect requires a fingerprint and a host:port")
		}
		node := wire.Node{Key: wire.Key{Fingerprint: args[1]}, Addr: parseAddr(args[2])}
		return wire.RequestBody{Version: "1", Kind: wire.KindConnect, Connect: &node}, nil

	default:
		return wire.RequestBody{}, fmt.Errorf("unknown command %q", args[0])
	}
}

func printResponse(cmd string, resp wire.ResponseBody) error {
	switch cmd {
	case "search":
		if resp.Found == nil {
			fmt.Println("not found")
			return nil
		}
		fmt.Printf("%s %s\n", resp.Found.Key.Fingerprint, resp.Found.Addr)
		return nil

	case "list-neighbours":
		for _, n := range resp.Neighbours {
			fmt.Printf("%s %s\n", n.Key.Fingerprint, n.Addr)
		}
		return nil

	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
}

// send opens one connection to the daemon's local socket, issues a single
// unauthenticated request/response exchange (local IPC carries no envelope
// crypto; only the daemon's own loopback trust boundary protects it), and
// returns the decoded response.
func send(ctx context.Context, addr transport.Addr, body wire.RequestBody) (wire.ResponseBody, error) {
	stream := unix.New()

	type result struct {
		conn transport.Conn
		err  error
	}
	dialed := make(chan result, 1)
	go func() {
		conn, err := stream.Dial(addr)
		dialed <- result{conn: conn, err: err}
	}()

	var conn transport.Conn
	select {
	case r := <-dialed:
		if r.err != nil {
			return wire.ResponseBody{}, fmt.Errorf("dial %s: %w", addr, r.err)
		}
		conn = r.conn
	case <-ctx.Done():
		return wire.ResponseBody{}, ctx.Err()
	}
	defer conn.Close()

	reqBytes, err := json.Marshal(wire.Request{Envelope: wire.Envelope{Mode: wire.ModeFast, Body: mustEncode(body)}})
	if err != nil {
		return wire.ResponseBody{}, err
	}
	if err := transport.WriteFrame(conn, reqBytes); err != nil {
		return wire.ResponseBody{}, err
	}

	respBytes, err := transport.ReadFrame(conn)
	if err != nil {
		return wire.ResponseBody{}, err
	}
	var resp wire.Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return wire.ResponseBody{}, err
	}
	var out wire.ResponseBody
	if err := json.Unmarshal(resp.Envelope.Body, &out); err != nil {
		return wire.ResponseBody{}, err
	}
	return out, nil
}

func mustEncode(body wire.RequestBody) []byte {
	b, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return b
}

func parseAddr(hostport string) wire.Address {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return wire.Address{}
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return wire.Address{}
	}
	ip := net.ParseIP(host)
	if ip == nil {
		if addrs, err := net.LookupHost(host); err == nil && len(addrs) > 0 {
			ip = net.ParseIP(addrs[0])
		}
	}
	return wire.Address{IP: ip, Port: uint16(port)}
}

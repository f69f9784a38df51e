package search

import "kipa/internal/wire"

// ForSearch builds the termination callbacks for the Search(target)
// operation. A candidate whose key matches target is not trusted on sight:
// it is queued like any other candidate (and, having distance zero to the
// destination, is always probed next) so the search confirms it answers
// before declaring success. Finish(Some) happens once that probe
// completes; absent a match, the search finishes with "not found" once the
// k nodes closest to the destination are all explored, meaning none of
// the nearest known candidates pointed us any closer.
func ForSearch(target wire.Key, k int) Callbacks {
	return Callbacks{
		OnFound: func(wire.Node, Progress) Outcome {
			return Outcome{Verdict: Continue}
		},
		OnExplored: func(n wire.Node, p Progress) Outcome {
			if n.Key.Equal(target) {
				return Outcome{Verdict: Finish, Found: n}
			}
			if closureReached(p, k) {
				return Outcome{Verdict: Finish}
			}
			return Outcome{Verdict: Continue}
		},
	}
}

// ForConnect builds the termination callbacks for the Connect operation:
// on_found never finishes early, since every discovered node should be
// absorbed; on_explored terminates under the same closure condition as
// Search, against a destination the caller has set to the local key.
func ForConnect(k int) Callbacks {
	return Callbacks{
		OnFound: func(wire.Node, Progress) Outcome {
			return Outcome{Verdict: Continue}
		},
		OnExplored: func(_ wire.Node, p Progress) Outcome {
			if closureReached(p, k) {
				return Outcome{Verdict: Finish}
			}
			return Outcome{Verdict: Continue}
		},
	}
}

func closureReached(p Progress, k int) bool {
	closest := p.ClosestFound(k)
	for _, c := range closest {
		if !p.Explored(c.Key) {
			return false
		}
	}
	return true
}

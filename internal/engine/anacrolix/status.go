package anacrolix

import (
	"github.com/anacrolix/torrent"

	"torrentctl/internal/domain"
	"torrentctl/internal/engine"
)

// fileSpan locates one file inside the torrent's contiguous byte stream.
type fileSpan struct {
	offset int64
	length int64
}

// pieceStates reads the completion bitfield and whether any piece is
// currently being hashed.
func pieceStates(t *torrent.Torrent) (complete []bool, checking bool) {
	n := t.NumPieces()
	complete = make([]bool, n)
	for i := 0; i < n; i++ {
		ps := t.PieceState(i)
		complete[i] = ps.Complete
		if ps.Checking {
			checking = true
		}
	}
	return complete, checking
}

// fileProgress credits each file with the bytes of its completed pieces.
func fileProgress(spans []fileSpan, pieceLength int64, complete []bool) []int64 {
	out := make([]int64, len(spans))
	if pieceLength <= 0 {
		return out
	}
	for i, s := range spans {
		if s.length <= 0 {
			continue
		}
		end := s.offset + s.length
		first := int(s.offset / pieceLength)
		last := int((end - 1) / pieceLength)
		for p := first; p <= last && p < len(complete); p++ {
			if !complete[p] {
				continue
			}
			lo := max(int64(p)*pieceLength, s.offset)
			hi := min(int64(p+1)*pieceLength, end)
			out[i] += hi - lo
		}
	}
	return out
}

// wantedTotals sums size and progress of the files not set to Ignore. A nil
// priority list means every file is wanted.
func wantedTotals(spans []fileSpan, progress []int64, priorities []domain.Priority) (wanted, done int64) {
	for i, s := range spans {
		if i < len(priorities) && priorities[i] == domain.PriorityIgnore {
			continue
		}
		wanted += s.length
		if i < len(progress) {
			done += progress[i]
		}
	}
	return wanted, done
}

// wantedPieces marks the pieces that overlap at least one wanted file.
func wantedPieces(spans []fileSpan, priorities []domain.Priority, pieceLength int64, numPieces int) []bool {
	out := make([]bool, numPieces)
	if pieceLength <= 0 {
		return out
	}
	for i, s := range spans {
		if s.length <= 0 || (i < len(priorities) && priorities[i] == domain.PriorityIgnore) {
			continue
		}
		first := int(s.offset / pieceLength)
		last := int((s.offset + s.length - 1) / pieceLength)
		for p := first; p <= last && p < numPieces; p++ {
			out[p] = true
		}
	}
	return out
}

// sequentialWindow picks the next size incomplete wanted pieces in order.
func sequentialWindow(complete, wanted []bool, size int) []int {
	var out []int
	for i := 0; i < len(complete) && len(out) < size; i++ {
		if complete[i] || (i < len(wanted) && !wanted[i]) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func progressRatio(done, wanted int64) float64 {
	if wanted <= 0 {
		return 1
	}
	if done >= wanted {
		return 1
	}
	return float64(done) / float64(wanted)
}

type stateInputs struct {
	hasInfo  bool
	moving   bool
	checking bool
	finished bool
	seeding  bool
}

func protocolState(in stateInputs) engine.ProtocolState {
	switch {
	case !in.hasInfo:
		return engine.ProtocolDownloadingMetadata
	case in.moving:
		return engine.ProtocolAllocating
	case in.checking:
		return engine.ProtocolCheckingFiles
	case in.seeding:
		return engine.ProtocolSeeding
	case in.finished:
		return engine.ProtocolFinished
	default:
		return engine.ProtocolDownloading
	}
}

func piecePriority(p domain.Priority) torrent.PiecePriority {
	switch {
	case p == domain.PriorityIgnore:
		return torrent.PiecePriorityNone
	case p >= domain.PriorityHigh:
		return torrent.PiecePriorityHigh
	default:
		return torrent.PiecePriorityNormal
	}
}

func countTrue(bits []bool) int {
	n := 0
	for _, b := range bits {
		if b {
			n++
		}
	}
	return n
}

// firstNewPiece returns the lowest index complete now but not before, or -1.
func firstNewPiece(prev, curr []bool) int {
	for i, c := range curr {
		if c && (i >= len(prev) || !prev[i]) {
			return i
		}
	}
	return -1
}

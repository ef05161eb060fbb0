package anacrolix

import (
	"errors"
	"fmt"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"torrentctl/internal/domain"
)

// resumeData is the bencoded fast-resume record of one torrent.
type resumeData struct {
	InfoHash        string     `bencode:"info-hash"`
	Name            string     `bencode:"name,omitempty"`
	Info            []byte     `bencode:"info,omitempty"`
	Trackers        [][]string `bencode:"trackers,omitempty"`
	SavePath        string     `bencode:"save-path,omitempty"`
	Priorities      []int      `bencode:"file-priorities,omitempty"`
	DownloadLimit   int        `bencode:"download-rate-limit"`
	UploadLimit     int        `bencode:"upload-rate-limit"`
	Paused          int        `bencode:"paused"`
	AutoManaged     int        `bencode:"auto-managed"`
	Sequential      int        `bencode:"sequential-download"`
	TotalDownloaded int64      `bencode:"total-downloaded"`
	TotalUploaded   int64      `bencode:"total-uploaded"`
	ActiveTime      int64      `bencode:"active-time"`
	SeedingTime     int64      `bencode:"seeding-time"`
}

var errBadResumeData = errors.New("malformed resume data")

func decodeResumeData(blob []byte) (*resumeData, error) {
	var rd resumeData
	if err := bencode.Unmarshal(blob, &rd); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadResumeData, err)
	}
	var ih metainfo.Hash
	if err := ih.FromHexString(rd.InfoHash); err != nil {
		return nil, fmt.Errorf("%w: info-hash %q", errBadResumeData, rd.InfoHash)
	}
	return &rd, nil
}

func (rd *resumeData) encode() ([]byte, error) {
	return bencode.Marshal(rd)
}

// spec rebuilds the add spec, from the info dictionary when the record has
// one and from a magnet otherwise.
func (rd *resumeData) spec() (*torrent.TorrentSpec, error) {
	if len(rd.Info) > 0 {
		mi := &metainfo.MetaInfo{InfoBytes: rd.Info, AnnounceList: rd.Trackers}
		spec, err := torrent.TorrentSpecFromMetaInfoErr(mi)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadResumeData, err)
		}
		if got := spec.InfoHash.HexString(); got != rd.InfoHash {
			return nil, fmt.Errorf("%w: info dictionary hashes to %s, want %s", errBadResumeData, got, rd.InfoHash)
		}
		return spec, nil
	}

	var ih metainfo.Hash
	if err := ih.FromHexString(rd.InfoHash); err != nil {
		return nil, fmt.Errorf("%w: info-hash %q", errBadResumeData, rd.InfoHash)
	}
	magnet := metainfo.Magnet{InfoHash: ih, DisplayName: rd.Name, Trackers: flattenTiers(rd.Trackers)}
	spec, err := torrent.TorrentSpecFromMagnetUri(magnet.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadResumeData, err)
	}
	spec.Trackers = rd.Trackers
	return spec, nil
}

// apply restores the per-torrent settings onto a handle before it starts.
func (rd *resumeData) apply(h *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(rd.Priorities) > 0 {
		prios := make([]domain.Priority, len(rd.Priorities))
		for i, p := range rd.Priorities {
			prios[i] = domain.Priority(p)
		}
		h.pending = prios
	}
	h.down.set(rd.DownloadLimit)
	h.up.set(rd.UploadLimit)
	h.paused = rd.Paused != 0
	h.autoManaged = rd.AutoManaged != 0
	h.sequential = rd.Sequential != 0
	h.baseDownloaded = rd.TotalDownloaded
	h.baseUploaded = rd.TotalUploaded
	h.activeTime = time.Duration(rd.ActiveTime) * time.Second
	h.seedingTime = time.Duration(rd.SeedingTime) * time.Second
}

func flattenTiers(tiers [][]string) []string {
	var out []string
	for _, tier := range tiers {
		out = append(out, tier...)
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package http

import (
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"torrentctl/internal/domain"
)

type TorrentResponse struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Magnet          string                `json:"magnet"`
	State           domain.TorrentState   `json:"state"`
	Progress        int                   `json:"progress"`
	DownloadSpeed   int64                 `json:"download_speed"`
	UploadSpeed     int64                 `json:"upload_speed"`
	TotalSize       int64                 `json:"total_size"`
	TotalDone       int64                 `json:"total_done"`
	ShareRatio      float64               `json:"share_ratio"`
	ETA             int64                 `json:"eta"`
	Peers           int                   `json:"peers"`
	Seeds           int                   `json:"seeds"`
	Paused          bool                  `json:"paused"`
	Sequential      bool                  `json:"sequential"`
	DownloadPath    string                `json:"download_path"`
	TorrentFilePath string                `json:"torrent_file_path"`
	ErrorMessage    string                `json:"error_message,omitempty"`
	CreatedAt       string                `json:"created_at"`
	UpdatedAt       string                `json:"updated_at"`
	FinishedAt      *string               `json:"finished_at,omitempty"`
	Files           []TorrentFileResponse `json:"files"`
}

type TorrentFileResponse struct {
	Index    int    `json:"index"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Received int64  `json:"received"`
	Priority int    `json:"priority"`
}

type TrackerResponse struct {
	URL  string `json:"url"`
	Tier int    `json:"tier"`
}

type PeerResponse struct {
	Addr   string `json:"addr"`
	Client string `json:"client"`
}

type PiecesResponse struct {
	Total    int    `json:"total"`
	Complete int    `json:"complete"`
	Bitfield string `json:"bitfield"`
}

func torrentToResponse(t domain.Torrent) TorrentResponse {
	resp := TorrentResponse{
		ID:              t.ID,
		Name:            t.Name,
		Magnet:          t.MagnetURI,
		State:           t.State,
		Progress:        t.Progress,
		DownloadSpeed:   t.DownloadSpeed,
		UploadSpeed:     t.UploadSpeed,
		TotalSize:       t.TotalSize,
		TotalDone:       t.TotalDone,
		ShareRatio:      t.ShareRatio,
		ETA:             t.ETA,
		Peers:           t.Peers,
		Seeds:           t.Seeds,
		Paused:          t.Paused,
		Sequential:      t.Sequential,
		DownloadPath:    t.DownloadPath,
		TorrentFilePath: t.TorrentFilePath,
		ErrorMessage:    t.ErrorMessage,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.Format(time.RFC3339),
		Files:           make([]TorrentFileResponse, len(t.Files)),
	}
	if t.FinishedAt != nil {
		v := t.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &v
	}

	for i, f := range t.Files {
		resp.Files[i] = TorrentFileResponse{
			Index:    i,
			Path:     f.Path,
			Size:     f.Size,
			Received: f.Received,
			Priority: int(f.Priority),
		}
	}
	return resp
}

// piecesToResponse packs the bitfield as a string of '1' and '0'.
func piecesToResponse(pieces []bool) PiecesResponse {
	var b strings.Builder
	b.Grow(len(pieces))
	complete := 0
	for _, p := range pieces {
		if p {
			complete++
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return PiecesResponse{Total: len(pieces), Complete: complete, Bitfield: b.String()}
}

func infoHashFromMagnet(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "magnet" {
		return "", fmt.Errorf("invalid magnet URI scheme")
	}
	values, err := url.ParseQuery(parsed.RawQuery)
	if err != nil {
		return "", err
	}

	for _, xt := range values["xt"] {
		if !strings.HasPrefix(strings.ToLower(xt), "urn:btih:") {
			continue
		}
		hash := strings.TrimSpace(xt[len("urn:btih:"):])
		if len(hash) == 0 {
			continue
		}
		if len(hash) == 40 {
			if _, err := hex.DecodeString(hash); err == nil {
				return strings.ToLower(hash), nil
			}
		}

		encoding := base32.StdEncoding.WithPadding(base32.NoPadding)
		base32Value := strings.TrimRight(strings.ToUpper(hash), "=")
		decoded, err := encoding.DecodeString(base32Value)
		if err != nil || len(decoded) != 20 {
			continue
		}
		return hex.EncodeToString(decoded), nil
	}

	return "", fmt.Errorf("btih magnet xt not present")
}

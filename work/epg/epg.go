package epg

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"streamview/work/cache"
	"streamview/work/client"
	"streamview/work/config"
	"streamview/work/logger"
	"streamview/work/types"
	"streamview/work/utils"
)

// XMLTV document shapes as served by Xtream-Codes xmltv.php endpoints.
// Only the fields the simplified guide needs are decoded.

type xmltvDoc struct {
	XMLName    xml.Name         `xml:"tv"`
	Channels   []xmltvChannel   `xml:"channel"`
	Programmes []xmltvProgramme `xml:"programme"`
}

type xmltvChannel struct {
	ID          string    `xml:"id,attr"`
	DisplayName string    `xml:"display-name"`
	Icon        xmltvIcon `xml:"icon"`
}

type xmltvIcon struct {
	Src string `xml:"src,attr"`
}

type xmltvProgramme struct {
	Start       string `xml:"start,attr"`
	Stop        string `xml:"stop,attr"`
	Channel     string `xml:"channel,attr"`
	Title       string `xml:"title"`
	Description string `xml:"desc"`
}

// Service fetches XMLTV guide documents from the upstream provider and
// serves them as simplified JSON. Whole documents are cached per credential
// set; per-channel filtering happens on the cached copy.
type Service struct {
	client *client.HeaderSettingClient
	cache  *cache.Cache
	cfg    *config.Config
	log    *logger.Logger
}

// NewService creates the EPG service.
func NewService(httpClient *client.HeaderSettingClient, respCache *cache.Cache, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{
		client: httpClient,
		cache:  respCache,
		cfg:    cfg,
		log:    log,
	}
}

// Guide returns the simplified guide for the credential set, optionally
// restricted to a single channel id. The decoded document is cached as
// JSON so repeat requests skip both the fetch and the XML parse.
func (s *Service) Guide(ctx context.Context, creds *types.Credentials, channelID string) (*types.EPGData, error) {
	key := cache.Key("epg", creds.BaseURL, creds.Username, creds.Password)

	var data *types.EPGData
	if blob, ok := s.cache.Get(key); ok {
		cached := &types.EPGData{}
		if err := json.Unmarshal(blob, cached); err == nil {
			data = cached
		}
	}

	if data == nil {
		raw, err := s.fetch(ctx, creds)
		if err != nil {
			return nil, err
		}
		data, err = s.parse(raw)
		if err != nil {
			return nil, err
		}
		if blob, err := json.Marshal(data); err == nil {
			s.cache.Set(key, blob)
		}
	}

	if channelID == "" {
		return data, nil
	}
	return filterChannel(data, channelID), nil
}

// fetch downloads the raw XMLTV document.
func (s *Service) fetch(ctx context.Context, creds *types.Credentials) ([]byte, error) {
	epgURL := fmt.Sprintf("%s/xmltv.php?username=%s&password=%s",
		creds.BaseURL, url.QueryEscape(creds.Username), url.QueryEscape(creds.Password))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, epgURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create EPG request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if s.cfg.Debug {
			s.log.Debug("{epg - fetch} request failed for %s: %v", utils.LogURL(s.cfg, creds.BaseURL), err)
		}
		return nil, fmt.Errorf("EPG request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("EPG endpoint returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read EPG response: %w", err)
	}

	if s.cfg.Debug {
		s.log.Debug("{epg - fetch} downloaded %d bytes of XMLTV", len(body))
	}
	return body, nil
}

// parse decodes the XMLTV document into the simplified guide shape.
func (s *Service) parse(raw []byte) (*types.EPGData, error) {
	var doc xmltvDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse XMLTV document: %w", err)
	}

	data := &types.EPGData{
		Channels:   make([]types.EPGChannel, 0, len(doc.Channels)),
		Programmes: make([]types.EPGProgramme, 0, len(doc.Programmes)),
	}

	for _, ch := range doc.Channels {
		data.Channels = append(data.Channels, types.EPGChannel{
			ID:          ch.ID,
			DisplayName: ch.DisplayName,
			Icon:        ch.Icon.Src,
		})
	}

	for _, p := range doc.Programmes {
		data.Programmes = append(data.Programmes, types.EPGProgramme{
			Channel:     p.Channel,
			Title:       s.decodeText(p.Title),
			Description: s.decodeText(p.Description),
			Start:       p.Start,
			Stop:        p.Stop,
		})
	}

	if s.cfg.Debug {
		s.log.Debug("{epg - parse} decoded %d channels, %d programmes", len(data.Channels), len(data.Programmes))
	}
	return data, nil
}

// decodeText optionally base64-decodes a programme field. Some providers
// encode titles and descriptions; when EPG_BASE64_DECODE is on, values that
// decode to valid UTF-8-ish text are replaced and anything that fails to
// decode passes through unchanged.
func (s *Service) decodeText(v string) string {
	if !s.cfg.EPGBase64 || v == "" {
		return v
	}
	decoded, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return v
	}
	return string(decoded)
}

// filterChannel returns a copy of the guide restricted to one channel.
func filterChannel(data *types.EPGData, channelID string) *types.EPGData {
	out := &types.EPGData{
		Channels:   []types.EPGChannel{},
		Programmes: []types.EPGProgramme{},
	}
	for _, ch := range data.Channels {
		if ch.ID == channelID {
			out.Channels = append(out.Channels, ch)
		}
	}
	for _, p := range data.Programmes {
		if p.Channel == channelID {
			out.Programmes = append(out.Programmes, p)
		}
	}
	return out
}

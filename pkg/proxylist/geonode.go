package proxylist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"streamscout/internal/logger"
)

const geonodeAPI = "https://proxylist.geonode.com/api/proxy-list?limit=500"

type GeonodeSource struct {
	apiURL    string
	client    *http.Client
	userAgent string
	logger    *logger.Logger
}

type geonodeResponse struct {
	Data  []geonodeProxy `json:"data"`
	Total int            `json:"total"`
}

type geonodeProxy struct {
	IP        string   `json:"ip"`
	Port      string   `json:"port"`
	Protocols []string `json:"protocols"`
	Country   string   `json:"country"`
	UpTime    float64  `json:"upTime"`
}

func NewGeonodeSource(config SourceConfig) *GeonodeSource {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &GeonodeSource{
		apiURL:    geonodeAPI,
		client:    &http.Client{Timeout: timeout},
		userAgent: config.UserAgent,
		logger:    logger.New("geonode"),
	}
}

func (g *GeonodeSource) Name() string {
	return "geonode"
}

func (g *GeonodeSource) Load(ctx context.Context) ([]Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var payload geonodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	var proxies []Proxy
	for _, entry := range payload.Data {
		port, err := strconv.Atoi(entry.Port)
		if err != nil || entry.IP == "" {
			continue
		}

		// One entry per advertised protocol; the pool deduplicates by address.
		for _, protocol := range entry.Protocols {
			switch protocol {
			case "http", "https", "socks4", "socks5":
			default:
				continue
			}
			proxies = append(proxies, Proxy{
				Host:     entry.IP,
				Port:     port,
				Type:     protocol,
				Country:  entry.Country,
				LastSeen: time.Now(),
			})
		}
	}

	g.logger.InfoBg("Geonode API collected %d proxies from %d entries", len(proxies), len(payload.Data))
	return proxies, nil
}

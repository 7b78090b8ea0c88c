package contacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"meetly/internal/domain"
)

// Client talks to a People-API-style contacts directory.
type Client struct {
	apiBase string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger

	// Some directory backends serve stale empty search results until a
	// first throwaway query has primed their cache. The warmup issues one
	// empty search and waits briefly, once per process.
	warmup     bool
	warmupWait time.Duration
	warmupOnce sync.Once
}

type ClientConfig struct {
	APIBase    string
	APIKey     string
	Warmup     bool
	WarmupWait time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://people.googleapis.com/v1"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.WarmupWait <= 0 {
		cfg.WarmupWait = 2 * time.Second
	}
	return &Client{
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		apiKey:     cfg.APIKey,
		client:     cfg.HTTPClient,
		logger:     cfg.Logger,
		warmup:     cfg.Warmup,
		warmupWait: cfg.WarmupWait,
	}
}

type searchResponse struct {
	Results []struct {
		Person apiPerson `json:"person"`
	} `json:"results"`
}

type apiPerson struct {
	ResourceName string `json:"resourceName"`
	Names        []struct {
		DisplayName string `json:"displayName"`
		GivenName   string `json:"givenName"`
	} `json:"names"`
	EmailAddresses []struct {
		Value string `json:"value"`
	} `json:"emailAddresses"`
}

func (c *Client) Search(ctx context.Context, name string) ([]domain.Contact, error) {
	c.maybeWarmup(ctx)

	body, err := c.search(ctx, name)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	var contacts []domain.Contact
	for _, r := range parsed.Results {
		contact := domain.Contact{ID: r.Person.ResourceName}
		if len(r.Person.Names) > 0 {
			contact.Name = r.Person.Names[0].DisplayName
		}
		if len(r.Person.EmailAddresses) > 0 {
			contact.Email = r.Person.EmailAddresses[0].Value
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

func (c *Client) search(ctx context.Context, query string) ([]byte, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("readMask", "names,emailAddresses")
	endpoint := c.apiBase + "/people:searchContacts?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contacts search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("contacts search %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

// maybeWarmup primes the directory's search cache once per process.
func (c *Client) maybeWarmup(ctx context.Context) {
	if !c.warmup {
		return
	}
	c.warmupOnce.Do(func() {
		if _, err := c.search(ctx, ""); err != nil && c.logger != nil {
			c.logger.Warn("contacts warmup failed", "error", err)
		}
		select {
		case <-time.After(c.warmupWait):
		case <-ctx.Done():
		}
	})
}

type createRequest struct {
	Names          []createName  `json:"names"`
	EmailAddresses []createEmail `json:"emailAddresses"`
}

type createName struct {
	GivenName string `json:"givenName"`
}

type createEmail struct {
	Value string `json:"value"`
}

func (c *Client) Create(ctx context.Context, name, email string) error {
	payload, err := json.Marshal(createRequest{
		Names:          []createName{{GivenName: name}},
		EmailAddresses: []createEmail{{Value: email}},
	})
	if err != nil {
		return fmt.Errorf("marshal contact: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiBase+"/people:createContact", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("contacts create: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("contacts create %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// Package postal resolves Brazilian postal codes (CEP) to street addresses
// through the ViaCEP web service.
package postal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL = "https://viacep.com.br/ws"
	DefaultTimeout = 10 * time.Second
)

var (
	ErrInvalidCode = errors.New("postal code must have 8 digits")
	ErrNotFound    = errors.New("postal code not found")
)

// Address is the part of a lookup the patient form fills in.
type Address struct {
	ZipCode      string `json:"zipCode"`
	City         string `json:"city"`
	Neighborhood string `json:"neighborhood"`
	Street       string `json:"street"`
	Complement   string `json:"complement"`
	State        string `json:"state"`
}

type viaCEPResponse struct {
	CEP         string      `json:"cep"`
	Logradouro  string      `json:"logradouro"`
	Complemento string      `json:"complemento"`
	Bairro      string      `json:"bairro"`
	Localidade  string      `json:"localidade"`
	UF          string      `json:"uf"`
	Erro        interface{} `json:"erro"`
}

// failed reports the "erro" flag, which ViaCEP has sent both as a boolean and
// as the string "true".
func (r *viaCEPResponse) failed() bool {
	switch v := r.Erro.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

type Client struct {
	baseURL string
	http    *http.Client
	flight  singleflight.Group
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Normalize strips punctuation from code and checks it has 8 digits.
func Normalize(code string) (string, error) {
	var b strings.Builder
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == ' ':
		default:
			return "", ErrInvalidCode
		}
	}
	if b.Len() != 8 {
		return "", ErrInvalidCode
	}
	return b.String(), nil
}

// Lookup resolves code. Identical concurrent lookups share one request.
func (c *Client) Lookup(ctx context.Context, code string) (*Address, error) {
	digits, err := Normalize(code)
	if err != nil {
		return nil, err
	}
	v, err, _ := c.flight.Do(digits, func() (interface{}, error) {
		return c.fetch(ctx, digits)
	})
	if err != nil {
		return nil, err
	}
	addr := *v.(*Address)
	return &addr, nil
}

func (c *Client) fetch(ctx context.Context, digits string) (*Address, error) {
	url := fmt.Sprintf("%s/%s/json/", c.baseURL, digits)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	// ViaCEP answers 400 for malformed codes
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("postal lookup: status code = %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("reading postal response: %w", err)
	}
	var out viaCEPResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding postal response: %w", err)
	}
	if out.failed() {
		return nil, ErrNotFound
	}

	return &Address{
		ZipCode:      digits[:5] + "-" + digits[5:],
		City:         out.Localidade,
		Neighborhood: out.Bairro,
		Street:       out.Logradouro,
		Complement:   out.Complemento,
		State:        out.UF,
	}, nil
}

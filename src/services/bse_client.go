package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/username/bondflow/src/parsers/bse"
)

// BSEClient resolves exchange scrip codes to ISINs.
type BSEClient struct {
	baseURL string
	client  *sourceClient
}

func NewBSEClient(baseURL string, opts ClientOptions) *BSEClient {
	return &BSEClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: newSourceClient("bse", opts, map[string]string{
			"Referer": "https://www.bseindia.com/",
			"Origin":  "https://www.bseindia.com",
			"Accept":  "application/json",
		}),
	}
}

func (c *BSEClient) ResolveISIN(ctx context.Context, scripCode string) (string, error) {
	u := c.baseURL + "/BseIndiaAPI/api/DebSecurityInfo/w?scripcode=" + url.QueryEscape(scripCode)
	body, err := c.client.get(ctx, u)
	if err != nil {
		return "", err
	}
	isin, err := bse.ParseSecurityISIN(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("scrip %s: %w", scripCode, err)
	}
	return isin, nil
}

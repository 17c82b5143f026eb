package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/parsers/nsdl"
)

const nsdlServicePath = "/bds-service/v1/public/"

// NSDLClient reads the depository's public bond disclosures. Coupon detail and
// redemption answers are cached per ISIN so one schedule build fetches each once.
type NSDLClient struct {
	baseURL string
	client  *sourceClient
	cache   *cache.Cache
}

func NewNSDLClient(baseURL string, opts ClientOptions, ttl time.Duration) *NSDLClient {
	base := strings.TrimRight(baseURL, "/")
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &NSDLClient{
		baseURL: base,
		client:  newSourceClient("nsdl", opts, map[string]string{"Referer": base + "/", "Accept": "application/json"}),
		cache:   cache.New(ttl, 2*ttl),
	}
}

func (c *NSDLClient) endpoint(path, isin string) string {
	return c.baseURL + nsdlServicePath + path + "?isin=" + url.QueryEscape(isin)
}

func (c *NSDLClient) fetch(ctx context.Context, path, isin string) ([]byte, error) {
	return c.client.get(ctx, c.endpoint(path, isin))
}

// FetchISINDetails returns the issuer classification of an ISIN.
func (c *NSDLClient) FetchISINDetails(ctx context.Context, isin string) (nsdl.ISINDetails, error) {
	body, err := c.fetch(ctx, "isins", isin)
	if err != nil {
		return nsdl.ISINDetails{}, err
	}
	details, err := nsdl.ParseISINDetails(bytes.NewReader(body))
	if err != nil {
		return nsdl.ISINDetails{}, fmt.Errorf("isin details of %s: %w", isin, err)
	}
	if details.ISIN == "" {
		details.ISIN = isin
	}
	return details, nil
}

// FetchInstrumentTerms returns allotment, redemption date and face value.
func (c *NSDLClient) FetchInstrumentTerms(ctx context.Context, isin string) (nsdl.InstrumentTerms, error) {
	body, err := c.fetch(ctx, "bdsinfo/instruments", isin)
	if err != nil {
		return nsdl.InstrumentTerms{}, err
	}
	terms, err := nsdl.ParseInstrument(bytes.NewReader(body))
	if err != nil {
		return nsdl.InstrumentTerms{}, fmt.Errorf("instrument terms of %s: %w", isin, err)
	}
	return terms, nil
}

func (c *NSDLClient) GetCouponDetail(ctx context.Context, isin string) (models.CouponDetail, error) {
	key := "coupon:" + isin
	if v, found := c.cache.Get(key); found {
		return v.(models.CouponDetail), nil
	}
	body, err := c.fetch(ctx, "bdsinfo/coupondetail", isin)
	if err != nil {
		return models.CouponDetail{}, err
	}
	detail, err := nsdl.ParseCouponDetail(bytes.NewReader(body), isin)
	if err != nil {
		return models.CouponDetail{}, fmt.Errorf("coupon detail of %s: %w", isin, err)
	}
	c.cache.Set(key, detail, cache.DefaultExpiration)
	return detail, nil
}

func (c *NSDLClient) GetRawRedemption(ctx context.Context, isin string) (models.RedemptionDisclosure, error) {
	key := "redemption:" + isin
	if v, found := c.cache.Get(key); found {
		return v.(models.RedemptionDisclosure), nil
	}
	body, err := c.fetch(ctx, "bdsinfo/redemptions", isin)
	if err != nil {
		return models.RedemptionDisclosure{}, err
	}
	disclosure, err := nsdl.ParseRedemption(bytes.NewReader(body), isin)
	if err != nil {
		return models.RedemptionDisclosure{}, fmt.Errorf("redemptions of %s: %w", isin, err)
	}
	c.cache.Set(key, disclosure, cache.DefaultExpiration)
	return disclosure, nil
}

// RedemptionEvents lists the redemption rows of the coupon cashflow table.
func (c *NSDLClient) RedemptionEvents(ctx context.Context, isin string) ([]models.RedemptionRecord, error) {
	detail, err := c.GetCouponDetail(ctx, isin)
	if err != nil {
		return nil, err
	}
	return nsdl.RedemptionEvents(detail), nil
}

// FetchInstrument combines the three depository views of a newly listed ISIN.
func (c *NSDLClient) FetchInstrument(ctx context.Context, securityID int64, symbol, isin string) (models.Instrument, error) {
	details, err := c.FetchISINDetails(ctx, isin)
	if err != nil {
		return models.Instrument{}, err
	}
	terms, err := c.FetchInstrumentTerms(ctx, isin)
	if err != nil {
		return models.Instrument{}, err
	}
	coupon, err := c.GetCouponDetail(ctx, isin)
	if err != nil {
		return models.Instrument{}, err
	}
	return nsdl.BuildInstrument(securityID, symbol, details, terms, coupon), nil
}

package ecb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/Dan9191/credit-risk/internal/config"
	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

// Series keys of the ECB data portal
const (
	KeyRateSeries      = "FM/M.U2.EUR.4F.KR.MRR_MBR.LEV"
	UnemploymentSeries = "LFSI/M.DE.S.UNEHRT.TOTAL0.15_74.T"
)

// Region is the label national indicators are reported under
const Region = "Deutschland"

// Indicators not published by the portal are reported at neutral values so
// that they never trip a threshold on their own.
const (
	fallbackUnemployment = 5.5
	neutralConfidence    = 100
	observationsPerFetch = 12
)

const genericDataType = "application/vnd.sdmx.genericdata+xml;version=2.1"

// Observation is one period of a time series
type Observation struct {
	Period time.Time
	Value  float64
}

// Client handles integration with the ECB statistical data portal
type Client struct {
	url    string
	client *http.Client
	log    logrus.FieldLogger
}

// NewClient initializes a new ECB client
func NewClient(cfg *config.Config, log logrus.FieldLogger) *Client {
	return &Client{
		url: cfg.ECBURL,
		client: &http.Client{
			Timeout: cfg.ECBTimeout,
		},
		log: log,
	}
}

// sendRequest fetches the last n observations of a series as SDMX generic data
func (c *Client) sendRequest(ctx context.Context, series string, n int) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s?%s", c.url, series, url.Values{
		"lastNObservations": {strconv.Itoa(n)},
		"detail":            {"dataonly"},
	}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", genericDataType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.log.WithField("series", series).Debugf("ECB XML response: %d bytes", len(body))
	return body, nil
}

func parsePeriod(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported period %q", s)
}

// parseGenericData extracts the observations of an SDMX generic data
// message, oldest first
func parseGenericData(rawBody []byte) ([]Observation, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	obsElements := doc.FindElements("//Series/Obs")
	if len(obsElements) == 0 {
		return nil, fmt.Errorf("no observations found in XML")
	}

	out := make([]Observation, 0, len(obsElements))
	for _, obs := range obsElements {
		dim := obs.FindElement("./ObsDimension")
		val := obs.FindElement("./ObsValue")
		if dim == nil || val == nil {
			return nil, fmt.Errorf("incomplete observation in XML")
		}
		period, err := parsePeriod(dim.SelectAttrValue("value", ""))
		if err != nil {
			return nil, err
		}
		raw := val.SelectAttrValue("value", "")
		if raw == "" || raw == "NaN" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse value %q: %w", raw, err)
		}
		out = append(out, Observation{Period: period, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

// Series returns up to n recent observations of a series
func (c *Client) Series(ctx context.Context, series string, n int) ([]Observation, error) {
	body, err := c.sendRequest(ctx, series, n)
	if err != nil {
		return nil, err
	}
	return parseGenericData(body)
}

// KeyRate retrieves the current main refinancing rate in percent
func (c *Client) KeyRate(ctx context.Context) (float64, error) {
	obs, err := c.Series(ctx, KeyRateSeries, 1)
	if err != nil {
		return 0, err
	}
	if len(obs) == 0 {
		return 0, fmt.Errorf("no key rate data found")
	}
	rate := obs[len(obs)-1].Value
	c.log.Infof("Retrieved key rate: %.2f%%", rate)
	return rate, nil
}

// Observations returns national unemployment readings as region-wide
// indicators. When the portal cannot be reached a single fallback reading
// dated asOf is returned instead.
func (c *Client) Observations(ctx context.Context, asOf time.Time) ([]models.MacroObservation, error) {
	obs, err := c.Series(ctx, UnemploymentSeries, observationsPerFetch)
	if err != nil || len(obs) == 0 {
		c.log.WithField("error", err).Warn("Using fallback economic indicators")
		return []models.MacroObservation{{
			Region:           Region,
			Date:             asOf,
			UnemploymentRate: fallbackUnemployment,
			ConfidenceIndex:  neutralConfidence,
		}}, nil
	}

	out := make([]models.MacroObservation, 0, len(obs))
	for _, o := range obs {
		if o.Period.After(asOf) {
			continue
		}
		out = append(out, models.MacroObservation{
			Region:           Region,
			Date:             o.Period,
			UnemploymentRate: o.Value,
			ConfidenceIndex:  neutralConfidence,
		})
	}
	return out, nil
}

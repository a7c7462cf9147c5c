package location

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/antonholmquist/jason"
)

const (
	// DefaultGeocoderURL is the public Nominatim instance.
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org"

	userAgent      = "ecowatch/1.0 (species threshold tracker)"
	requestTimeout = 10 * time.Second
)

// Nominatim reverse-geocodes through a Nominatim-compatible API.
type Nominatim struct {
	BaseURL string
	Client  *http.Client
}

// NewNominatim returns a geocoder. Empty baseURL uses DefaultGeocoderURL.
func NewNominatim(baseURL string) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultGeocoderURL
	}
	return &Nominatim{BaseURL: baseURL, Client: &http.Client{Timeout: requestTimeout}}
}

func (n *Nominatim) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))

	obj, err := getJSON(ctx, n.Client, n.BaseURL+"/reverse?"+q.Encode())
	if err != nil {
		return "", err
	}
	if msg, err := obj.GetString("error"); err == nil {
		return "", fmt.Errorf("nominatim: %s", msg)
	}
	name, err := obj.GetString("display_name")
	if err != nil {
		return "", fmt.Errorf("nominatim: no display_name: %w", err)
	}
	return name, nil
}

// IPFix approximates position from an IP geolocation service that answers
// {"lat": .., "lon": ..}, such as ip-api.com.
type IPFix struct {
	URL    string
	Client *http.Client
}

// NewIPFix returns a fix provider querying endpoint.
func NewIPFix(endpoint string) *IPFix {
	return &IPFix{URL: endpoint, Client: &http.Client{Timeout: requestTimeout}}
}

func (f *IPFix) Fix(ctx context.Context) (Coordinates, error) {
	obj, err := getJSON(ctx, f.Client, f.URL)
	if err != nil {
		return Coordinates{}, err
	}
	if status, err := obj.GetString("status"); err == nil && status != "success" {
		msg, _ := obj.GetString("message")
		return Coordinates{}, fmt.Errorf("ip geolocation: %s %s", status, msg)
	}
	lat, errLat := obj.GetFloat64("lat")
	lng, errLng := obj.GetFloat64("lon")
	if err := errors.Join(errLat, errLng); err != nil {
		return Coordinates{}, fmt.Errorf("ip geolocation: %w", err)
	}
	return Coordinates{Lat: lat, Lng: lng}, nil
}

func getJSON(ctx context.Context, client *http.Client, u string) (*jason.Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: http %d", req.URL.Host, resp.StatusCode)
	}
	return jason.NewObjectFromReader(resp.Body)
}

// geocodeKey rounds to about 11 m so nearby lookups share a cache entry.
func geocodeKey(lat, lng float64) string {
	return fmt.Sprintf("geo:%.4f,%.4f", lat, lng)
}

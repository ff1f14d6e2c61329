// Package integration drives a running service over HTTP. Set BASE_URL to
// point it at one; the tests skip otherwise.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

var client = &http.Client{Timeout: 5 * time.Second}

func baseURL(t *testing.T) string {
	t.Helper()
	v := os.Getenv("BASE_URL")
	if v == "" {
		t.Skip("BASE_URL not set")
	}
	return strings.TrimRight(v, "/")
}

func waitReady(t *testing.T, u string) {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(u + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("service not ready")
}

func request(t *testing.T, method, url, session, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-Id", session)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

type product struct {
	ID          int64 `json:"id"`
	MaxQuantity int   `json:"max_quantity"`
}

func firstProduct(t *testing.T, u string) product {
	t.Helper()
	resp, body := request(t, http.MethodGet, u+"/products", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var ov struct {
		Products []product `json:"products"`
	}
	if err := json.Unmarshal(body, &ov); err != nil {
		t.Fatal(err)
	}
	if len(ov.Products) == 0 {
		t.Skip("catalog is empty")
	}
	return ov.Products[0]
}

func TestIntegration_DocsServed(t *testing.T) {
	u := baseURL(t)
	waitReady(t, u)
	for _, path := range []string{"/openapi.yaml", "/docs", "/metrics"} {
		resp, _ := request(t, http.MethodGet, u+path, "", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestIntegration_CartLimits(t *testing.T) {
	u := baseURL(t)
	waitReady(t, u)
	p := firstProduct(t, u)
	session := "it-" + uuid.NewString()

	add := fmt.Sprintf(`{"product_id":%d,"quantity":%d}`, p.ID, p.MaxQuantity+5)
	resp, body := request(t, http.MethodPost, u+"/cart/items", session, add)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var v struct {
		Outcome   string `json:"outcome"`
		ItemCount int    `json:"item_count"`
	}
	_ = json.Unmarshal(body, &v)
	if v.Outcome != "at_maximum" || v.ItemCount != p.MaxQuantity {
		t.Fatalf("expected clamp to %d, got %s/%d", p.MaxQuantity, v.Outcome, v.ItemCount)
	}

	resp, _ = request(t, http.MethodPost, fmt.Sprintf("%s/cart/items/%d/increment", u, p.ID+100000), session, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	request(t, http.MethodDelete, u+"/cart", session, "")
}

// Increments one line from many goroutines; the count must stop at the limit.
func TestIntegration_ConcurrentIncrements(t *testing.T) {
	u := baseURL(t)
	waitReady(t, u)
	p := firstProduct(t, u)
	session := "it-" + uuid.NewString()
	request(t, http.MethodPost, u+"/cart/items", session, fmt.Sprintf(`{"product_id":%d}`, p.ID))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/cart/items/%d/increment", u, p.ID), nil)
			req.Header.Set("X-User-Id", session)
			if resp, err := client.Do(req); err == nil {
				_ = resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	_, body := request(t, http.MethodGet, u+"/cart/count", session, "")
	var c struct {
		ItemCount int `json:"item_count"`
	}
	_ = json.Unmarshal(body, &c)
	if c.ItemCount != p.MaxQuantity {
		t.Fatalf("expected %d, got %d", p.MaxQuantity, c.ItemCount)
	}
	request(t, http.MethodDelete, u+"/cart", session, "")
}

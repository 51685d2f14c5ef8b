package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is the HTTP outcome of one request.
type Result struct {
	Status int
	Body   string
	Err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	adminToken := flag.String("admin-token", "dev-admin-token", "admin token for initialize")
	owner := flag.String("owner", "owner.test", "owner account")
	ftContract := flag.String("ft", "usdt.test", "fungible asset contract account")
	payer := flag.String("payer", "alice.test", "payer account")

	// duplicate test: many callers pay the same order id at once
	nCallers := flag.Int("callers", 200, "concurrent payers of one order")
	concurrency := flag.Int("c", 50, "max concurrency")
	nRefunds := flag.Int("refunds", 20, "concurrent refund calls on one order")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	status, err := doPOST(client, *baseURL+"/api/initialize", map[string]string{
		"owner_id":                   *owner,
		"fungible_asset_contract_id": *ftContract,
	}, map[string]string{"X-Admin-Token": *adminToken})
	switch {
	case err != nil:
		fail("initialize: %v", err)
	case status == http.StatusConflict:
		fmt.Println("already initialized")
	default:
		fmt.Println("initialize ok")
	}

	// 1) one order id, many payers: exactly one is accepted
	orderID := "lt-" + uuid.NewString()
	fmt.Printf("start duplicate pay test: order=%s callers=%d concurrency=%d\n", orderID, *nCallers, *concurrency)
	results := fanOut(*nCallers, *concurrency, func(int) Result {
		// stands in for the signing gateway, which attests the deposit
		return post(client, *baseURL+"/api/orders/pay", map[string]string{
			"order_id":     orderID,
			"order_amount": "1000",
		}, map[string]string{"X-Account-Id": *payer, "X-Attached-Deposit": "1500"})
	})
	printSummary("duplicate_pay", results)
	if n := countStatus(results, http.StatusOK); n != 1 {
		fail("expected exactly one accepted payment, got %d", n)
	}

	// 2) concurrent refunds of the same order: exactly one is admitted
	fmt.Printf("\nstart refund race: order=%s calls=%d\n", orderID, *nRefunds)
	results = fanOut(*nRefunds, *nRefunds, func(int) Result {
		return post(client, *baseURL+"/api/orders/"+orderID+"/refund", nil, map[string]string{"X-Account-Id": *owner})
	})
	printSummary("refund_race", results)
	if n := countStatus(results, http.StatusOK) + countStatus(results, http.StatusAccepted); n != 1 {
		fail("expected exactly one admitted refund, got %d", n)
	}

	// 3) the continuation settles the order
	state, err := waitRefund(client, *baseURL, orderID, 10*time.Second)
	if err != nil {
		fail("wait refund: %v", err)
	}
	fmt.Println("final refund_state:", state)
}

func fanOut(total, concurrency int, fn func(idx int) Result) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func post(client *http.Client, url string, body any, headers map[string]string) Result {
	var r io.Reader = http.NoBody
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(http.MethodPost, url, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(b)}
}

// doPOST returns the status for callers that only care about success.
func doPOST(client *http.Client, url string, body any, headers map[string]string) (int, error) {
	res := post(client, url, body, headers)
	if res.Err != nil {
		return 0, res.Err
	}
	if res.Status >= 300 && res.Status != http.StatusConflict {
		return res.Status, fmt.Errorf("status=%d body=%s", res.Status, res.Body)
	}
	return res.Status, nil
}

// waitRefund polls the order until the refund leaves refund_pending.
func waitRefund(client *http.Client, baseURL, orderID string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := client.Get(baseURL + "/api/orders/" + orderID)
		if err != nil {
			return "", err
		}
		var out struct {
			Code int `json:"code"`
			Data struct {
				RefundState string `json:"refund_state"`
			} `json:"data"`
		}
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			return "", err
		}
		if out.Data.RefundState != "refund_pending" {
			return out.Data.RefundState, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("order %s still refund_pending after %s", orderID, timeout)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func countStatus(results []Result, status int) int {
	n := 0
	for _, r := range results {
		if r.Err == nil && r.Status == status {
			n++
		}
	}
	return n
}

// printSummary prints the status code distribution.
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 202, 400, 401, 404, 409, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

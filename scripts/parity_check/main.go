// Command parity_check replays read-only requests against the Go API and the
// legacy system it replaces, reporting status and body differences. Used
// during the migration window to validate endpoint parity before cutover.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

type endpoint struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type checkFile struct {
	Endpoints []endpoint `json:"endpoints"`
}

type result struct {
	Endpoint     endpoint
	NewStatus    int
	LegacyStatus int
	StatusMatch  bool
	BodyMatch    bool
	Err          error
}

func main() {
	var (
		newBase    string
		legacyBase string
		listPath   string
		email      string
		password   string
		timeout    time.Duration
	)

	flag.StringVar(&newBase, "new-base", "http://localhost:8080/api/v1", "new API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:8000/api", "legacy API base URL")
	flag.StringVar(&listPath, "endpoints", filepath.Join("scripts", "parity_check", "endpoints.json"), "JSON endpoints file")
	flag.StringVar(&email, "email", "", "login email used against both APIs")
	flag.StringVar(&password, "password", "", "login password")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	endpoints, err := loadEndpoints(listPath)
	if err != nil {
		log.Fatalf("failed to load endpoints: %v", err)
	}

	client := &http.Client{Timeout: timeout}

	newToken, err := login(client, newBase, email, password)
	if err != nil {
		log.Fatalf("login against new API failed: %v", err)
	}
	legacyToken, err := login(client, legacyBase, email, password)
	if err != nil {
		log.Fatalf("login against legacy API failed: %v", err)
	}

	var breaking, minor int
	fmt.Println("Parity Check Report")
	fmt.Println("===================")
	for _, ep := range endpoints {
		res := check(client, newBase, newToken, legacyBase, legacyToken, ep)
		report(res)
		if res.Err != nil || !res.StatusMatch || !res.BodyMatch {
			if ep.Critical {
				breaking++
			} else {
				minor++
			}
		}
	}

	fmt.Printf("Breaking diffs: %d, minor diffs: %d\n", breaking, minor)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadEndpoints(path string) ([]endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file checkFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints defined in %s", path)
	}
	return file.Endpoints, nil
}

// login posts credentials and pulls the access token out of either envelope
// shape: {"data":{"access_token":...}} on the new API, {"access_token":...}
// on the legacy one.
func login(client *http.Client, base, email, password string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := client.Post(strings.TrimRight(base, "/")+"/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if data, ok := body["data"].(map[string]interface{}); ok {
		body = data
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		return "", fmt.Errorf("no access_token in login response")
	}
	return token, nil
}

func check(client *http.Client, newBase, newToken, legacyBase, legacyToken string, ep endpoint) result {
	res := result{Endpoint: ep}

	newStatus, newBody, err := fetch(client, newBase, newToken, ep)
	if err != nil {
		res.Err = fmt.Errorf("new API request failed: %w", err)
		return res
	}
	legacyStatus, legacyBody, err := fetch(client, legacyBase, legacyToken, ep)
	if err != nil {
		res.Err = fmt.Errorf("legacy request failed: %w", err)
		return res
	}

	res.NewStatus = newStatus
	res.LegacyStatus = legacyStatus
	res.StatusMatch = newStatus == legacyStatus
	res.BodyMatch = bodiesEqual(newBody, legacyBody)
	return res
}

func fetch(client *http.Client, base, token string, ep endpoint) (int, []byte, error) {
	method := strings.ToUpper(strings.TrimSpace(ep.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := ep.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	normalize(&aj)
	normalize(&bj)
	return reflect.DeepEqual(aj, bj)
}

// normalize collapses integral floats so 30 and 30.0 compare equal across
// serializers.
func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func report(res result) {
	status := "OK"
	if res.Err != nil {
		status = "ERROR"
	} else if !res.StatusMatch || !res.BodyMatch {
		status = "DIFF"
	}
	fmt.Printf("[%s] %s %s\n", status, res.Endpoint.Method, res.Endpoint.Path)
	if res.Err != nil {
		fmt.Printf("  error: %v\n", res.Err)
		return
	}
	fmt.Printf("  new: %d | legacy: %d | status match: %t | body match: %t | critical: %t\n",
		res.NewStatus, res.LegacyStatus, res.StatusMatch, res.BodyMatch, res.Endpoint.Critical)
}

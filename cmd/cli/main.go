package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type site struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type status struct {
	URL            string  `json:"url"`
	Online         bool    `json:"online"`
	StatusCode     *int    `json:"status_code"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	Error          string  `json:"error"`
}

func main() {
	_ = godotenv.Load()
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 30 * time.Second}

	raw := strings.Join(os.Args[1:], " ")
	if raw == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Enter a site URL to monitor (e.g., https://example.com): ")
		raw, _ = reader.ReadString('\n')
	}
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	body, _ := json.Marshal(map[string]string{"url": raw})
	resp, err := client.Post(api+"/sites", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		fmt.Printf("API returned %s: %s\n", resp.Status, e.Detail)
		os.Exit(1)
	}
	var s site
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		fmt.Println("Bad response:", err)
		os.Exit(1)
	}
	fmt.Printf("Monitoring %s (id %d)\n", s.URL, s.ID)

	sresp, err := client.Get(fmt.Sprintf("%s/status/%d", api, s.ID))
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer sresp.Body.Close()
	var st status
	if err := json.NewDecoder(sresp.Body).Decode(&st); err != nil {
		fmt.Println("Bad response:", err)
		os.Exit(1)
	}

	state := "DOWN"
	if st.Online {
		state = "UP"
	}
	code := "-"
	if st.StatusCode != nil {
		code = fmt.Sprint(*st.StatusCode)
	}
	fmt.Printf("%s  status=%s  %.2f ms\n", state, code, st.ResponseTimeMS)
	if st.Error != "" {
		fmt.Println("reason:", st.Error)
	}
}

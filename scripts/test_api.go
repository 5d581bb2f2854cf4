//go:build ignore

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api"

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{} // No timeout, renders are slow
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

func main() {
	color.Cyan("🚀 Starting Animation Generation API Test\n")

	// 1. Model catalog
	color.Yellow("\n1. Get Model Catalog")
	resp, body, err := sendRequest("GET", "/model/v1", nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var catalogResp map[string]interface{}
	json.Unmarshal(body, &catalogResp)
	prettyPrint(catalogResp)

	// 2. Start generation
	color.Yellow("\n2. Start Generation")
	genReq := map[string]interface{}{
		"prompt":         "Animate the pythagorean theorem with a right triangle and squares on each side",
		"max_iterations": 3,
	}
	resp, body, err = sendRequest("POST", "/session/v1/generate", genReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var genResp map[string]interface{}
	json.Unmarshal(body, &genResp)
	prettyPrint(genResp)

	var sessionID string
	if data, ok := genResp["data"].(map[string]interface{}); ok {
		if id, ok := data["session_id"].(string); ok {
			sessionID = id
		}
	}
	if sessionID == "" {
		color.Red("No session ID returned")
		os.Exit(1)
	}

	// 3. Poll until terminal
	color.Yellow("\n3. Poll Session Status")
	var status string
	for i := 0; i < 60; i++ {
		time.Sleep(2 * time.Second)
		resp, body, err = sendRequest("GET", "/session/v1/"+sessionID, nil)
		if err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
		var statusResp map[string]interface{}
		json.Unmarshal(body, &statusResp)
		if data, ok := statusResp["data"].(map[string]interface{}); ok {
			status, _ = data["status"].(string)
			iter, _ := data["current_iteration"].(float64)
			fmt.Printf("  status=%s iteration=%.0f\n", status, iter)
		}
		if status == "success" || status == "failed" || status == "max_iterations_reached" {
			break
		}
	}
	if status != "success" {
		color.Red("Generation did not succeed (status=%s), skipping render", status)
		os.Exit(1)
	}
	color.Green("Generation succeeded")

	// 4. List sessions
	color.Yellow("\n4. List Sessions")
	resp, body, err = sendRequest("GET", "/session/v1", nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var listResp map[string]interface{}
	json.Unmarshal(body, &listResp)
	prettyPrint(listResp)

	// 5. Render
	color.Yellow("\n5. Start Render (mp4, low quality for speed)")
	renderReq := map[string]interface{}{
		"format":  "mp4",
		"quality": "low",
	}
	resp, body, err = sendRequest("POST", "/session/v1/"+sessionID+"/render", renderReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var renderResp map[string]interface{}
	json.Unmarshal(body, &renderResp)
	prettyPrint(renderResp)

	// 6. Poll render state
	color.Yellow("\n6. Poll Render State")
	var renderStatus string
	for i := 0; i < 150; i++ {
		time.Sleep(2 * time.Second)
		_, body, err = sendRequest("GET", "/session/v1/"+sessionID, nil)
		if err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
		var statusResp map[string]interface{}
		json.Unmarshal(body, &statusResp)
		if data, ok := statusResp["data"].(map[string]interface{}); ok {
			if render, ok := data["render"].(map[string]interface{}); ok {
				renderStatus, _ = render["status"].(string)
				fmt.Printf("  render=%s\n", renderStatus)
			}
		}
		if renderStatus == "completed" || renderStatus == "failed" {
			break
		}
	}
	if renderStatus != "completed" {
		color.Red("Render did not complete (status=%s)", renderStatus)
		os.Exit(1)
	}

	// 7. Download
	color.Yellow("\n7. Download Artifact")
	resp, body, err = sendRequest("GET", "/session/v1/"+sessionID+"/download", nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s, Content-Type: %s, Size: %d bytes",
		resp.Status, resp.Header.Get("Content-Type"), len(body))

	color.Cyan("\n✅ All API flows completed")
}

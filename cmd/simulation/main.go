package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const baseURL = "http://localhost:3000/api/session/v1"

// Simplified DTOs for the script
type GenerateResponse struct {
	Data struct {
		SessionID     string `json:"session_id"`
		Status        string `json:"status"`
		MaxIterations int    `json:"max_iterations"`
	} `json:"data"`
}

type StatusResponse struct {
	Data struct {
		Status           string `json:"status"`
		CurrentIteration int    `json:"current_iteration"`
		MaxIterations    int    `json:"max_iterations"`
		FinalCode        string `json:"final_code"`
	} `json:"data"`
}

func main() {
	fmt.Println("=== Animation Generation Simulation Client ===")

	sessionID, err := startGeneration("Draw a circle that transforms into a square")
	if err != nil {
		log.Fatalf("Failed to start generation: %v", err)
	}
	fmt.Printf("Session Created: %s\n", sessionID)

	// Poll until the refinement loop settles.
	for {
		time.Sleep(2 * time.Second)

		status, err := getStatus(sessionID)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		fmt.Printf("Status: %s (iteration %d/%d)\n",
			status.Data.Status, status.Data.CurrentIteration, status.Data.MaxIterations)

		switch status.Data.Status {
		case "success":
			fmt.Println("\n--- Final Code ---")
			fmt.Println(status.Data.FinalCode)
			return
		case "failed", "max_iterations_reached":
			fmt.Printf("\nGeneration ended without valid code (%s)\n", status.Data.Status)
			if status.Data.FinalCode != "" {
				fmt.Println("\n--- Last Attempt ---")
				fmt.Println(status.Data.FinalCode)
			}
			return
		}
	}
}

func startGeneration(prompt string) (string, error) {
	payload := map[string]interface{}{
		"prompt":         prompt,
		"max_iterations": 3,
	}
	jsonBytes, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", baseURL+"/generate", bytes.NewBuffer(jsonBytes))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body))
	}

	var res GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}
	return res.Data.SessionID, nil
}

func getStatus(sessionID string) (*StatusResponse, error) {
	resp, err := http.Get(baseURL + "/" + sessionID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body))
	}

	var res StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

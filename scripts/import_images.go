package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// UploadResult mirrors the fields we care about from the service response.
type UploadResult struct {
	ID             string   `json:"id"`
	TowerName      *string  `json:"tower_name"`
	ImageTemp      *float64 `json:"image_temp"`
	DeltaT         *float64 `json:"delta_t"`
	FaultLevel     string   `json:"fault_level"`
	AnalysisStatus string   `json:"analysis_status"`
}

const defaultServiceURL = "http://localhost:8080"

var authToken = ""

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run import_images.go <image-directory> [service-url]")
		fmt.Println("Example: go run import_images.go ./survey-2024-03 http://localhost:8080")
		os.Exit(1)
	}

	dir := os.Args[1]
	serviceURL := defaultServiceURL
	if len(os.Args) > 2 {
		serviceURL = strings.TrimRight(os.Args[2], "/")
	}

	if authToken == "" {
		fmt.Print("Enter auth token (Bearer token): ")
		fmt.Scanln(&authToken)
	}

	fmt.Println("Step 1: Collecting inspection images...")
	paths, err := collectImages(dir)
	if err != nil {
		fmt.Printf("Error reading directory: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Println("No jpg/jpeg/png files found, nothing to do.")
		return
	}
	fmt.Printf("✓ Found %d images\n", len(paths))

	fmt.Println("\nStep 2: Uploading to the inspection service...")
	client := &http.Client{Timeout: 2 * time.Minute}
	var processed, failed int
	for i, path := range paths {
		result, err := uploadImage(client, serviceURL, path)
		if err != nil {
			fmt.Printf("  [%d/%d] %s: FAILED (%v)\n", i+1, len(paths), filepath.Base(path), err)
			failed++
			continue
		}
		processed++
		tower := "unmatched"
		if result.TowerName != nil {
			tower = *result.TowerName
		}
		temp := "no reading"
		if result.ImageTemp != nil {
			temp = fmt.Sprintf("%.1f°C", *result.ImageTemp)
		}
		fmt.Printf("  [%d/%d] %s: %s | %s | %s | %s\n",
			i+1, len(paths), filepath.Base(path), result.AnalysisStatus, tower, temp, result.FaultLevel)

		// Stay under the ingestion rate limit.
		time.Sleep(6 * time.Second)
	}

	fmt.Printf("\nDone: %d processed, %d failed\n", processed, failed)
}

func collectImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}

func uploadImage(client *http.Client, serviceURL, path string) (*UploadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, serviceURL+"/api/v1/reports/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+authToken)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result UploadResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

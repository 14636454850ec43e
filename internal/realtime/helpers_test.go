package realtime

import (
	"bytes"
	"net/http"
	"testing"
)

func sendThroughAPI(t *testing.T, baseURL, token, body string) {
	t.Helper()

	payload := []byte(`{"body":"` + body + `","projectId":"proj","receiverId":"u-bob","senderId":"u-alice"}`)
	req, err := http.NewRequest(http.MethodPost, baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
}

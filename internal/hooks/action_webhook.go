// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"netwatch/pkg/netwatch/event"
)

const defaultWebhookTimeout = 5 * time.Second

// webhookBody is the JSON document POSTed on trigger (§6).
type webhookBody struct {
	AlertName string     `json:"alert_name"`
	Severity  string     `json:"severity"`
	Timestamp int64      `json:"timestamp"`
	Event     webhookEvt `json:"event"`
}

type webhookEvt struct {
	Sequence    uint64 `json:"sequence"`
	Type        uint32 `json:"type"`
	MessageType uint16 `json:"message_type"`
	Interface   string `json:"interface"`
}

var webhookClient = &http.Client{}

// runWebhook sends a.Method request to a.URL with the rule/event JSON
// body, honoring a.TimeoutMS. Success requires a 2xx status when
// a.Require2xx is set; otherwise transport success alone is enough.
func runWebhook(a WebhookAction, rule Rule, e *event.Event, now time.Time) (err error, timedOut bool) {
	timeout := defaultWebhookTimeout
	if a.TimeoutMS > 0 {
		timeout = time.Duration(a.TimeoutMS) * time.Millisecond
	}

	body := webhookBody{
		AlertName: rule.Name,
		Severity:  rule.Severity.String(),
		Timestamp: now.Unix(),
		Event: webhookEvt{
			Sequence:    e.Sequence,
			Type:        e.EventType,
			MessageType: e.MessageType,
			Interface:   e.Interface,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("webhook action: marshal body: %w", err), false
	}

	method := a.Method
	if method == "" {
		method = http.MethodPost
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, a.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook action: build request: %w", err), false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := webhookClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("webhook action timed out after %s", timeout), true
		}
		return fmt.Errorf("webhook action: request failed: %w", err), false
	}
	defer resp.Body.Close()

	if a.Require2xx && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return fmt.Errorf("webhook action: non-2xx status %d", resp.StatusCode), false
	}
	return nil, false
}

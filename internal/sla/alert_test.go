package sla

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

func TestCheckAlerts(t *testing.T) {
	agent := "agent-7"
	tests := []struct {
		name    string
		mutate  func(*domain.Ticket)
		now     time.Time
		want    []AlertType
		wantSts []Status
	}{
		{
			name: "healthy ticket",
			now:  at(60),
		},
		{
			name:    "frt warning only",
			now:     at(500),
			want:    []AlertType{AlertTypeFRT},
			wantSts: []Status{StatusWarning},
		},
		{
			name: "frt answered rt violated",
			mutate: func(tk *domain.Ticket) {
				tk.FirstResponseAt = ptrTime(at(30))
			},
			now:     at(9 * 3600),
			want:    []AlertType{AlertTypeRT},
			wantSts: []Status{StatusViolated},
		},
		{
			name:    "both clocks violated",
			now:     at(9 * 3600),
			want:    []AlertType{AlertTypeFRT, AlertTypeRT},
			wantSts: []Status{StatusViolated, StatusViolated},
		},
		{
			name: "closed ticket keeps frt alert",
			mutate: func(tk *domain.Ticket) {
				tk.Status = domain.TicketStatusClosed
			},
			now:     at(9 * 3600),
			want:    []AlertType{AlertTypeFRT},
			wantSts: []Status{StatusViolated},
		},
		{
			name: "resolved and answered",
			mutate: func(tk *domain.Ticket) {
				tk.FirstResponseAt = ptrTime(at(30))
				tk.ResolvedAt = ptrTime(at(3600))
			},
			now: at(90 * 3600),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := newTicket(domain.TicketPriorityHigh, domain.TicketTypeAfterSale)
			ticket.AssignedAgentID = &agent
			if tt.mutate != nil {
				tt.mutate(ticket)
			}
			alerts, err := CheckAlerts(ticket, DefaultTargets(), tt.now)
			if err != nil {
				t.Fatalf("CheckAlerts error: %v", err)
			}
			if len(alerts) != len(tt.want) {
				t.Fatalf("got %d alerts, want %d: %+v", len(alerts), len(tt.want), alerts)
			}
			for i, a := range alerts {
				if a.Type != tt.want[i] || a.Status != tt.wantSts[i] {
					t.Errorf("alert %d = %s/%s, want %s/%s", i, a.Type, a.Status, tt.want[i], tt.wantSts[i])
				}
				if a.AssignedTo == nil || *a.AssignedTo != agent {
					t.Errorf("alert %d missing assignee", i)
				}
				if !a.CreatedAt.Equal(tt.now) {
					t.Errorf("alert %d created_at = %v, want %v", i, a.CreatedAt, tt.now)
				}
			}
		})
	}
}

func TestCheckAlertsIsRepeatable(t *testing.T) {
	ticket := newTicket(domain.TicketPriorityUrgent, domain.TicketTypePreSale)
	first, err := CheckAlerts(ticket, DefaultTargets(), at(3*3600))
	if err != nil {
		t.Fatalf("CheckAlerts error: %v", err)
	}
	second, _ := CheckAlerts(ticket, DefaultTargets(), at(3*3600))
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected the same two alerts on every scan, got %d and %d", len(first), len(second))
	}
}

func TestCheckAlertsMalformedTicket(t *testing.T) {
	if _, err := CheckAlerts(&domain.Ticket{ID: "TKT-9"}, DefaultTargets(), at(0)); err == nil {
		t.Fatal("expected error for ticket without created_at")
	}
}

func TestFormatAlertMessage(t *testing.T) {
	alert := Alert{
		TicketID:  "TKT-001",
		Type:      AlertTypeRT,
		Status:    StatusUrgent,
		Remaining: 12 * time.Minute,
		Target:    8 * time.Hour,
	}
	if got, want := FormatAlertMessage(alert), "🔴 紧急 工单 TKT-001 解决时效剩余 12.0 分钟"; got != want {
		t.Fatalf("FormatAlertMessage = %q, want %q", got, want)
	}

	alert.Type = AlertTypeFRT
	alert.Status = StatusWarning
	alert.Remaining = 90 * time.Second
	if got := FormatAlertMessage(alert); !strings.Contains(got, "首次响应时效剩余 1.5 分钟") {
		t.Fatalf("unexpected warning message %q", got)
	}

	alert.Status = StatusViolated
	alert.Remaining = 0
	if got := FormatAlertMessage(alert); !strings.Contains(got, "已超时") {
		t.Fatalf("unexpected violated message %q", got)
	}
}

func TestAlertJSON(t *testing.T) {
	alert := Alert{
		TicketID:   "TKT-002",
		Type:       AlertTypeFRT,
		Status:     StatusWarning,
		Remaining:  90 * time.Second,
		Target:     5 * time.Minute,
		Priority:   domain.TicketPriorityUrgent,
		TicketType: domain.TicketTypeComplaint,
		CreatedAt:  base,
	}
	raw, err := json.Marshal(alert)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if decoded["remaining_seconds"] != 90.0 || decoded["target_seconds"] != 300.0 {
		t.Fatalf("unexpected durations in %s", raw)
	}
	if decoded["alert_type"] != "frt" || decoded["created_at"] != float64(base.Unix()) {
		t.Fatalf("unexpected payload %s", raw)
	}
}

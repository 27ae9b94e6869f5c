package smtp

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
)

func TestNotifier_Notify(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	n := NewNotifier(Config{
		Host: "mail.example.com",
		Port: 587,
		From: "finsync@example.com",
		To:   []string{"ops@example.com"},
	})
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotFrom = from
		gotTo = to
		gotMsg = msg
		return nil
	}

	err := n.Notify(context.Background(), "Item requires attention", "item item-1 needs reauth")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAddr != "mail.example.com:587" {
		t.Errorf("unexpected addr: %s", gotAddr)
	}
	if gotFrom != "finsync@example.com" {
		t.Errorf("unexpected from: %s", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Errorf("unexpected recipients: %v", gotTo)
	}

	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: Item requires attention\r\n") {
		t.Errorf("missing subject header: %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\nitem item-1 needs reauth") {
		t.Errorf("missing body: %q", msg)
	}
}

func TestNotifier_Notify_NoRecipients(t *testing.T) {
	n := NewNotifier(Config{Host: "mail.example.com", Port: 587})

	if err := n.Notify(context.Background(), "subject", "body"); err == nil {
		t.Error("expected error with no recipients")
	}
}

func TestNotifier_Notify_CancelledContext(t *testing.T) {
	n := NewNotifier(Config{
		Host: "mail.example.com",
		Port: 587,
		To:   []string{"ops@example.com"},
	})
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		t.Error("sendMail should not be called with cancelled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.Notify(ctx, "subject", "body"); err == nil {
		t.Error("expected error with cancelled context")
	}
}

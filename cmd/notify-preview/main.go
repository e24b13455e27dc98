// Command notify-preview renders the notification for one workflow status and
// optionally sends it, without touching the database. Useful when editing
// templates or checking Lark credentials.
//
//	notify-preview -status in-progress -student stu@example.com
//	notify-preview -status ready-for-download -student ou_xxx -send
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/service"
	"github.com/garyjia/assignment-fulfillment/internal/config"
	"github.com/garyjia/assignment-fulfillment/internal/container"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file")
	status := flag.String("status", string(domainwf.StateAssigned), "workflow status to render")
	student := flag.String("student", "", "student email, open_id or bare ref")
	item := flag.String("item", "demo-project", "item reference")
	kind := flag.String("kind", string(entity.ItemKindProject), "item kind: project, course or internship")
	send := flag.Bool("send", false, "deliver through Lark instead of only printing")
	flag.Parse()

	fmt.Println("=== Notification Preview ===")

	state := domainwf.State(*status)
	if !state.IsValid() {
		log.Fatalf("Unknown status %q, expected one of %v", *status, domainwf.AllStates())
	}
	itemKind := entity.ItemKind(*kind)
	if !itemKind.IsValid() {
		log.Fatalf("Unknown item kind %q", *kind)
	}
	if *student == "" {
		log.Fatal("-student is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := zap.NewNop()
	if os.Getenv("VERBOSE") != "" {
		logger, _ = zap.NewDevelopment()
	}

	cc := cfg.ToContainerConfig()
	clients, err := container.ProvideNotificationClients(&cc.Lark, &cc.OpenAI, logger)
	if err != nil {
		log.Fatalf("Failed to build notification clients: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	assignment := sampleAssignment(*student, *item, itemKind, state)
	template := service.TemplateForState(state)

	fmt.Printf("\n[Step 1] Composing %q (rewrite enabled: %v)...\n", template, cfg.OpenAI.APIKey != "")
	msg, err := clients.Composer.Compose(ctx, assignment, template)
	if err != nil {
		log.Fatalf("✗ Compose failed: %v", err)
	}
	fmt.Printf("To:      %s\nSubject: %s\n\n%s\n", msg.Recipient, msg.Subject, msg.Body)

	if !*send {
		fmt.Println("\n=== Preview Complete (pass -send to deliver) ===")
		return
	}

	fmt.Println("\n[Step 2] Sending through Lark...")
	if err := clients.Gateway.Send(ctx, msg); err != nil {
		log.Fatalf("✗ Send failed: %v", err)
	}
	fmt.Println("✓ Message sent")
	fmt.Println("\n=== Test Complete ===")
}

// sampleAssignment fills in enough detail for every template to render
func sampleAssignment(student, item string, kind entity.ItemKind, state domainwf.State) *entity.Assignment {
	now := time.Now()
	a := entity.NewAssignment(student, item, kind, "preview", now)
	a.Status = state
	a.Requirement = &entity.Requirement{ProjectType: "web application", Notes: "preview"}
	a.Payment.AdvanceAmount = 500
	a.Payment.FinalAmount = 1000
	a.DeliveryFiles = []entity.DeliveryFile{{FileName: "report.pdf", FileType: "report"}}
	return a
}

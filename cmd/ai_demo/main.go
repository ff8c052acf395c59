package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"seva/internal/ai"
	"seva/internal/modules/donation"
)

func main() {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable not set")
	}

	ctx := context.Background()
	suggester, err := ai.NewGeminiSuggester(ctx, apiKey)
	if err != nil {
		log.Fatalf("Failed to initialize suggester: %v", err)
	}
	defer suggester.Close()

	// Sample donation
	items := donation.Items{
		donation.ItemClothes: 12,
		donation.ItemGrains:  5,
	}
	description := "winter blankets and a box of insulin pens, needs pickup today"
	fmt.Printf("Items: %v\nDescription: %s\n", items, description)

	out, err := suggester.SuggestPriority(ctx, items, description)
	if err != nil {
		log.Fatalf("Error suggesting priority: %v", err)
	}

	fmt.Printf("Suggested priority: %s\n", out.Priority)
	fmt.Printf("Rationale: %s\n", out.Rationale)
}

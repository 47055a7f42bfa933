package main

import (
	"context"
	"fmt"
	"os"

	"github.com/blackwell-systems/piptrack/internal/app"
)

func main() {
	if err := app.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

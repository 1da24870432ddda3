package main

import (
	"futures-volume-alerts/internal/cli"
)

func main() {
	cli.Execute()
}

package main

import "telegram-diet-diary/internal/cli"

func main() {
	cli.Execute()
}

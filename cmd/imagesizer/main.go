package main

import "github.com/Skryldev/imagesizer/internal/cli"

func main() {
	cli.Execute()
}

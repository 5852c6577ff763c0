package main

import "github.com/Messijah/PedagogiskDialog/internal/cli"

func main() {
	cli.Execute()
}

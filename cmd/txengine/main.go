package main

import "github.com/gemwalletcom/gem-android-sub002/internal/cli"

func main() {
	cli.Execute()
}

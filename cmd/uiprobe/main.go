// Command uiprobe runs UI test scenarios against Appium and Chrome.
package main

import "github.com/devicelab-dev/uiprobe/pkg/cli"

func main() {
	cli.Execute()
}

// main.go
package main

import (
	"fmt"
	"os"
	"time"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/cmd"
)

func main() {
	startTime := time.Now()

	// Print banner
	printBanner()

	code := cmd.Execute()

	elapsedTime := time.Since(startTime)
	fmt.Printf("\nTotal execution time: %s\n", elapsedTime)
	os.Exit(code)
}

func printBanner() {
	banner := `
 ____  ____  _____ ___ _   _ ____ _____  _    _     _     
|  _ \|  _ \| ____|_ _| \ | / ___|_   _|/ \  | |   | |    
| |_) | |_) |  _|  | ||  \| \___ \ | | / _ \ | |   | |    
|  __/|  _ <| |___ | || |\  |___) || |/ ___ \| |___| |___ 
|_|   |_| \_\_____|___|_| \_|____/ |_/_/   \_\_____|_____|
  ____ _   _ _____ ____ _  __
 / ___| | | | ____/ ___| |/ /
| |   | |_| |  _|| |   | ' / 
| |___|  _  | |__| |___| . \ 
 \____|_| |_|_____\____|_|\_\

 Version: %s
 Started at: %s
`
	fmt.Printf(banner, cmd.Version, time.Now().Format("2006-01-02 15:04:05"))
}

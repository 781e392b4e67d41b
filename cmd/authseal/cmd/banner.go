package cmd

import (
	"fmt"
)

const banner = `
     _         _   _     ____             _
    / \  _   _| |_| |__ / ___|  ___  __ _| |
   / _ \| | | | __| '_ \\___ \ / _ \/ _` + "`" + ` | |
  / ___ \ |_| | |_| | | |___) |  __/ (_| | |
 /_/   \_\__,_|\__|_| |_|____/ \___|\__,_|_|

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Cookie Authentication Service - Version %s\x1b[0m\n\n", Version)
}

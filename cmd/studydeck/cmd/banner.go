package cmd

import (
	"fmt"
)

const banner = `
     _             _           _           _    
 ___| |_ _   _  __| |_   _  __| | ___  ___| | __
/ __| __| | | |/ _` + "`" + ` | | | |/ _` + "`" + ` |/ _ \/ __| |/ /
\__ \ |_| |_| | (_| | |_| | (_| |  __/ (__|   < 
|___/\__|\__,_|\__,_|\__, |\__,_|\___|\___|_|\_\
                     |___/                      
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Flashcard Study Client - Version %s\x1b[0m\n\n", Version)
}

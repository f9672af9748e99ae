// Bench entry: -stage a|b|c
package main

import (
	"flag"
	"log"
)

func main() {
	stage := flag.String("stage", "", "bench stage: a (block-size sweep) | b (budget sweep) | c (memory vs mapped)")
	flag.Parse()
	switch *stage {
	case "a":
		runStageA()
	case "b":
		runStageB()
	case "c":
		runStageC()
	default:
		log.Fatalf("specify -stage a|b|c")
	}
}

// Command sched simulates FCFS, SRJF and Round Robin CPU scheduling.
//
//	sched -F -f jobs.txt
//	sched -v -R 2 -r 10
//	sched compare -R 4 -f jobs.txt
//	sched serve
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ChuLiYu/cpu-sched/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(2)
		}
	}()

	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}

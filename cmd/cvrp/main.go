// Command cvrp solves capacitated vehicle routing instances and benchmarks
// the search pipelines against each other from the command line.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

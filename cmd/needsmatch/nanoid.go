package main

import (
	"fmt"

	"needsmatch/internal/utils"

	"github.com/urfave/cli/v2"
)

var nanoidCommand = &cli.Command{
	Name:  "nanoid",
	Usage: "Print fresh row ids, handy for hand-written fixtures",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"c"},
			Value:   1,
		},
		&cli.IntFlag{
			Name:  "size",
			Usage: "Id length",
			Value: utils.DefaultIDSize,
		},
	},
	Action: func(c *cli.Context) error {
		if c.Int("count") < 1 {
			return fmt.Errorf("count must be at least 1")
		}

		size := c.Int("size")
		for i := 0; i < c.Int("count"); i++ {
			fmt.Fprintln(c.App.Writer, utils.NanoIDSize(size))
		}
		return nil
	},
}

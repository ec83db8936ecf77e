package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/tool"
)

type currentTimeArgs struct {
	TimeZone string `json:"time_zone,omitempty" description:"IANA time zone, e.g. Europe/Berlin. Defaults to the configured zone."`
}

// builtinTools are available without any external tool server.
func builtinTools(defaultZone string) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionToolFromStruct(
			"current_time",
			"Returns the current date and time in a time zone",
			currentTimeArgs{},
			func(_ context.Context, args map[string]any) (tool.Output, error) {
				zone, _ := args["time_zone"].(string)
				if zone == "" {
					zone = defaultZone
				}
				if zone == "" {
					zone = "UTC"
				}

				loc, err := time.LoadLocation(zone)
				if err != nil {
					return tool.Output{}, tool.NewToolError("current_time", fmt.Sprintf("unknown time zone %q", zone), tool.CodeValidation)
				}

				now := time.Now().In(loc)
				return tool.TextOutput(now.Format("Monday, 02 Jan 2006 15:04 MST")).WithArtifact(core.Artifact{
					"time":      now.Format(time.RFC3339),
					"time_zone": zone,
				}), nil
			},
		),
	}
}

package tools

import (
	"os"
	"os/user"
	"runtime"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// OSInfoInput is the (empty) input for os_info.
type OSInfoInput struct{}

// OSInfoOutput describes the host the assistant runs on.
type OSInfoOutput struct {
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	Hostname   string `json:"hostname"`
	Username   string `json:"username"`
	WorkingDir string `json:"working_dir"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`
	LocalTime  string `json:"local_time"`
	TimeZone   string `json:"time_zone"`
}

func registerOSInfo(g *genkit.Genkit, reg *Registry) ai.ToolRef {
	return genkit.DefineTool(g, "os_info",
		"Report the host environment: OS, architecture, hostname, user, working directory and local time.",
		func(ctx *ai.ToolContext, _ OSInfoInput) (OSInfoOutput, error) {
			hostname, _ := os.Hostname()
			wd, _ := os.Getwd()
			username := ""
			if u, err := user.Current(); err == nil {
				username = u.Username
			}
			now := time.Now()
			zone, _ := now.Zone()
			return OSInfoOutput{
				OS:         runtime.GOOS,
				Arch:       runtime.GOARCH,
				Hostname:   hostname,
				Username:   username,
				WorkingDir: wd,
				GoVersion:  runtime.Version(),
				NumCPU:     runtime.NumCPU(),
				LocalTime:  now.Format("2006-01-02 15:04:05"),
				TimeZone:   zone,
			}, nil
		},
	)
}

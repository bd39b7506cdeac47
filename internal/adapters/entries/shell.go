package entries

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eleven-am/jobgraph/internal/adapters/blocking"
	"github.com/eleven-am/jobgraph/internal/domain"
)

const (
	optionCommand = "command"
	optionWorkDir = "workDir"
	argPrefix     = "arg."
	envPrefix     = "env."

	// shellWaitDelay bounds how long output copying may outlive a killed
	// command.
	shellWaitDelay = 250 * time.Millisecond
)

// ShellTask runs an external command. Every option, arguments and
// environment included, is variable-substituted before the command starts.
type ShellTask struct {
	Command string
	Args    []string
	WorkDir string
	Env     map[string]string
	// Options override the blocking options, e.g. blockingExecution.
	Options blocking.Config
}

func (s *ShellTask) CreateConfig() blocking.Config {
	config := blocking.Config{optionCommand: s.Command}
	if s.WorkDir != "" {
		config.Set(optionWorkDir, s.WorkDir)
	}
	for i, arg := range s.Args {
		config.Set(argPrefix+strconv.Itoa(i), arg)
	}
	for k, v := range s.Env {
		config.Set(envPrefix+k, v)
	}
	for k, v := range s.Options {
		config.Set(k, v)
	}
	return config
}

func (s *ShellTask) IsValid(config blocking.Config) bool {
	return strings.TrimSpace(config.Get(optionCommand)) != ""
}

func (s *ShellTask) Work(config blocking.Config, result *domain.Result) blocking.WorkFunc {
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, config.Get(optionCommand), shellArgs(config)...)
		cmd.Dir = config.Get(optionWorkDir)
		cmd.WaitDelay = shellWaitDelay
		if env := shellEnv(config); len(env) > 0 {
			cmd.Env = append(os.Environ(), env...)
		}

		var output bytes.Buffer
		cmd.Stdout = &output
		cmd.Stderr = &output

		err := cmd.Run()
		result.AppendLog(strings.TrimRight(output.String(), "\n"))

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			result.ExitStatus = 0
			return nil
		case errors.As(err, &exitErr):
			result.ExitStatus = exitErr.ExitCode()
			return fmt.Errorf("command exited with status %d: %w", result.ExitStatus, err)
		default:
			result.ExitStatus = -1
			return fmt.Errorf("failed to run command: %w", err)
		}
	}
}

func (s *ShellTask) OnUncaughtFailure(unit *blocking.Unit, err error, result *domain.Result) {
	blocking.FailResult(unit, err, result)
}

func shellArgs(config blocking.Config) []string {
	var args []string
	for i := 0; ; i++ {
		arg, ok := config[argPrefix+strconv.Itoa(i)]
		if !ok {
			return args
		}
		args = append(args, arg)
	}
}

func shellEnv(config blocking.Config) []string {
	var env []string
	for k, v := range config {
		if name, ok := strings.CutPrefix(k, envPrefix); ok {
			env = append(env, name+"="+v)
		}
	}
	sort.Strings(env)
	return env
}

func Shell(name string, task ShellTask) domain.EntryNode {
	return domain.EntryNode{
		Name: name,
		Factory: blocking.Factory(func() blocking.Task {
			t := task
			return &t
		}),
	}
}

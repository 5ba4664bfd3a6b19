package common

import (
	"context"
	"time"

	"rjdctl/internal/errors"
)

// LoadInputFunc produces the input of a one-shot service command.
type LoadInputFunc[Input any] func() (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// ServiceOperationFunc is one call against the remote service.
type ServiceOperationFunc[Input, Output any] func(context.Context, Input) (Output, error)

// RunServiceCommand loads the input, performs one service call and writes
// the formatted result.
func RunServiceCommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	output *OutputHandler,
	cmdConfig CommandConfig,
	loadInput LoadInputFunc[Input],
	operation ServiceOperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	if err := output.fileProcessor.ValidateOutputFile(cmdConfig.OutputFile); err != nil {
		return err
	}

	input, err := loadInput()
	if err != nil {
		return err
	}

	logDetails(input, cmdConfig)

	start := time.Now()
	result, err := operation(ctx, input)
	if err != nil {
		return err
	}
	logger.Debug("Service call finished", "duration", time.Since(start).String())

	return output.HandleOutput(result, cmdConfig)
}

//go:build lambda

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/internal/engine"
	"github.com/rpkwiecinski/giftcard-engine/internal/store"
	"go.uber.org/zap"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

// packRequest carries the catalogue inline, either as a JSON document or as
// CSV text.
type packRequest struct {
	Catalogue  json.RawMessage `json:"catalogue"`
	CSV        string          `json:"csv,omitempty"`
	Workers    int             `json:"workers"`
	DailyLimit int             `json:"dailyLimit"`
	Iterations int             `json:"iterations,omitempty"`
}

type app struct {
	logger *zap.Logger
	conf   *config.Configuration
}

func (a *app) handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(400, "invalid base64 body")
		}
		body = string(decoded)
	}

	var req packRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return errResp(400, "invalid JSON: "+err.Error())
	}

	var records []catalogue.Record
	var err error
	switch {
	case len(req.Catalogue) > 0:
		records, err = catalogue.ParseJSON(req.Catalogue)
	case req.CSV != "":
		records, err = catalogue.ParseCSV(strings.NewReader(req.CSV))
	default:
		return errResp(400, "missing catalogue")
	}
	if err != nil {
		return errResp(400, err.Error())
	}

	conf := *a.conf
	if req.Iterations > 0 {
		conf.Selector.Iterations = req.Iterations
	}
	items, err := catalogue.Build(records, conf.Engine.ExtraBuyLimitFraction)
	if err != nil {
		return errResp(400, err.Error())
	}

	// Each invocation is stateless; statistics only live for the request.
	pipeline, err := engine.NewPipeline(a.logger, &conf, store.NewMemoryStatsStore(), nil)
	if err != nil {
		return errResp(500, err.Error())
	}
	res, err := pipeline.Run(ctx, items, req.Workers, req.DailyLimit)
	if err != nil {
		status := 500
		if errors.Is(err, catalogue.ErrMalformed) || len(items) == 0 {
			status = 400
		}
		return errResp(status, err.Error())
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return errResp(500, err.Error())
	}
	return events.LambdaFunctionURLResponse{StatusCode: 200, Headers: jsonHeader, Body: string(payload)}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	conf, err := config.LoadConfiguration(os.Getenv("GIFTCARD_CONFIG"))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.String("op", "main"), zap.Error(err))
	}
	a := &app{logger: logger, conf: conf}
	lambda.Start(a.handle)
}

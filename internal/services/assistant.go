package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/helpers"
	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

const (
	DefaultAssistantHops = 4

	historyLimit       = 10
	defaultToolListCap = 25
	maxToolListCap     = 100
)

type vertexClient interface {
	GenerateContent(ctx context.Context, req dto.VertexGenerateRequest) (dto.VertexGenerateResponse, error)
}

type assistantLedger interface {
	Add(ctx context.Context, uid, spaceID string, draft dto.TransactionDraft) ([]*models.Transaction, error)
	List(ctx context.Context, uid, spaceID string, f dto.TransactionFilter) ([]*models.Transaction, error)
}

type assistantAggregation interface {
	Today() civil.Date
	Summarize(ctx context.Context, uid, spaceID string, month dto.Month) (dto.Summary, error)
	BalanceAt(ctx context.Context, uid, spaceID string, date civil.Date) (dto.Balance, error)
}

type transcriptStore interface {
	SaveMessage(ctx context.Context, uid, sessionID string, msg models.AIMessage) error
	ListMessages(ctx context.Context, uid, sessionID string, limit int) ([]models.AIMessage, error)
}

type hopRecorder interface {
	AssistantHops(n int)
}

type assistantState int

const (
	awaitingModel assistantState = iota
	executingTool
	done
)

type AssistantOptions struct {
	MaxHops int
	TTL     time.Duration
	Metrics hopRecorder
}

type assistantService struct {
	vertex      vertexClient
	members     memberGetter
	ledger      assistantLedger
	aggregation assistantAggregation
	transcripts transcriptStore
	maxHops     int
	ttl         time.Duration
	metrics     hopRecorder
	clockNow    func() time.Time
}

// NewAssistantService builds the chat assistant. transcripts may be nil, in
// which case every query starts without history.
func NewAssistantService(vertex vertexClient, members memberGetter, ledger assistantLedger, aggregation assistantAggregation, transcripts transcriptStore, opts AssistantOptions) *assistantService {
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultAssistantHops
	}
	return &assistantService{
		vertex:      vertex,
		members:     members,
		ledger:      ledger,
		aggregation: aggregation,
		transcripts: transcripts,
		maxHops:     opts.MaxHops,
		ttl:         opts.TTL,
		metrics:     opts.Metrics,
		clockNow:    time.Now,
	}
}

// Query answers one user message. The model may call tools for up to
// maxHops rounds; after that it gets one last turn with tools disabled and
// must answer from what it has.
func (s *assistantService) Query(ctx context.Context, uid, spaceID, sessionID, message string) (dto.AIQueryResponse, error) {
	log := logger.FromContext(ctx)

	if _, err := requireMember(ctx, s.members, uid, spaceID); err != nil {
		return dto.AIQueryResponse{}, err
	}

	history, err := s.history(ctx, uid, sessionID)
	if err != nil {
		return dto.AIQueryResponse{}, err
	}

	today := s.aggregation.Today()
	contents := convertMessagesToContents(history, message)
	transcript := []models.AIMessage{{Role: "user", Content: message}}
	debug := &dto.AIDebugInfo{Tools: []dto.AIToolTrace{}}

	var resp dto.VertexGenerateResponse
	state := awaitingModel
	for state != done {
		switch state {
		case awaitingModel:
			mode := dto.FunctionCallingModeAuto
			if debug.Hops >= s.maxHops {
				mode = dto.FunctionCallingModeNone
				debug.Exhausted = true
			}
			resp, err = s.generate(ctx, contents, today, mode)
			if err != nil {
				return dto.AIQueryResponse{}, err
			}
			state = done
			if len(resp.ToolCalls) > 0 && mode == dto.FunctionCallingModeAuto {
				state = executingTool
			}

		case executingTool:
			debug.Hops++
			callParts := make([]dto.VertexPart, 0, len(resp.ToolCalls))
			resultParts := make([]dto.VertexPart, 0, len(resp.ToolCalls))
			for _, call := range resp.ToolCalls {
				log.Info("executing tool", "tool", call.Name, "hop", debug.Hops)

				result, err := s.executeTool(ctx, uid, spaceID, today, call)
				trace := dto.AIToolTrace{Tool: call.Name, Args: call.Args}
				if err != nil {
					if !isToolFeedback(err) {
						return dto.AIQueryResponse{}, fmt.Errorf("failed to execute tool %s: %w", call.Name, err)
					}
					trace.Error = err.Error()
					result = dto.VertexToolResult{Name: call.Name, Response: map[string]any{"error": err.Error()}}
				}
				debug.Tools = append(debug.Tools, trace)

				callParts = append(callParts, dto.VertexPart{FunctionCall: &call})
				resultParts = append(resultParts, dto.VertexPart{FunctionResponse: &result})
				transcript = append(transcript, models.AIMessage{
					Role:       "tool",
					ToolName:   call.Name,
					ToolArgs:   call.Args,
					ToolResult: result.Response,
				})
			}
			contents = append(contents,
				dto.VertexContent{Role: "model", Parts: callParts},
				dto.VertexContent{Role: "user", Parts: resultParts},
			)
			state = awaitingModel
		}
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" && debug.Exhausted {
		answer = "I could not finish that request. Please try asking in a simpler way."
	}
	if answer != "" {
		transcript = append(transcript, models.AIMessage{Role: "assistant", Content: answer})
	}
	if err := s.save(ctx, uid, sessionID, transcript); err != nil {
		return dto.AIQueryResponse{}, err
	}

	if s.metrics != nil {
		s.metrics.AssistantHops(debug.Hops)
	}
	log.Info("ai query completed", "session_id", sessionID, "hops", debug.Hops, "exhausted", debug.Exhausted)
	return dto.AIQueryResponse{Answer: answer, Debug: debug}, nil
}

func (s *assistantService) generate(ctx context.Context, contents []dto.VertexContent, today civil.Date, mode dto.FunctionCallingMode) (dto.VertexGenerateResponse, error) {
	req := dto.VertexGenerateRequest{
		System:          assistantPrompt(today),
		Contents:        contents,
		Tools:           assistantTools(),
		ToolConfig:      &dto.VertexToolConfig{Mode: mode},
		Temperature:     helpers.Ptr(float32(0.2)),
		MaxOutputTokens: helpers.Ptr(int32(1000)),
	}

	resp, err := s.vertex.GenerateContent(ctx, req)
	var malformed *errs.MalformedFunctionCallError
	if errors.As(err, &malformed) {
		logger.FromContext(ctx).Warn("malformed function call, retrying with strict prompt")
		req.System = strictAssistantPrompt(today)
		resp, err = s.vertex.GenerateContent(ctx, req)
	}
	return resp, err
}

func (s *assistantService) history(ctx context.Context, uid, sessionID string) ([]models.AIMessage, error) {
	if s.transcripts == nil || sessionID == "" {
		return nil, nil
	}
	return s.transcripts.ListMessages(ctx, uid, sessionID, historyLimit)
}

func (s *assistantService) save(ctx context.Context, uid, sessionID string, msgs []models.AIMessage) error {
	if s.transcripts == nil || sessionID == "" {
		return nil
	}
	now := s.clockNow()
	for i, msg := range msgs {
		msg.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		if s.ttl > 0 {
			msg.ExpiresAt = now.Add(s.ttl)
		}
		if err := s.transcripts.SaveMessage(ctx, uid, sessionID, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *assistantService) executeTool(ctx context.Context, uid, spaceID string, today civil.Date, call dto.VertexToolCall) (dto.VertexToolResult, error) {
	var result any
	switch call.Name {
	case "add_transaction":
		args, err := decodeArgs[dto.AddTransactionArgs](call.Args)
		if err != nil {
			return dto.VertexToolResult{}, errs.NewValidationError("arguments do not match the add_transaction schema")
		}
		draft, err := draftFromArgs(args, today)
		if err != nil {
			return dto.VertexToolResult{}, err
		}
		txs, err := s.ledger.Add(ctx, uid, spaceID, draft)
		if err != nil {
			return dto.VertexToolResult{}, err
		}
		result = map[string]any{"added": len(txs), "first": txs[0], "last": txs[len(txs)-1]}

	case "get_transactions":
		args, err := decodeArgs[dto.GetTransactionsArgs](call.Args)
		if err != nil {
			return dto.VertexToolResult{}, errs.NewValidationError("arguments do not match the get_transactions schema")
		}
		f, err := filterFromArgs(args)
		if err != nil {
			return dto.VertexToolResult{}, err
		}
		txs, err := s.ledger.List(ctx, uid, spaceID, f)
		if err != nil {
			return dto.VertexToolResult{}, err
		}
		result = map[string]any{"count": len(txs), "transactions": txs}

	case "get_balance":
		args, err := decodeArgs[dto.GetBalanceArgs](call.Args)
		if err != nil {
			return dto.VertexToolResult{}, errs.NewValidationError("arguments do not match the get_balance schema")
		}
		date, err := parseToolDate("date", args.Date, today)
		if err != nil {
			return dto.VertexToolResult{}, err
		}
		result, err = s.aggregation.BalanceAt(ctx, uid, spaceID, date)
		if err != nil {
			return dto.VertexToolResult{}, err
		}

	case "get_summary":
		args, err := decodeArgs[dto.GetSummaryArgs](call.Args)
		if err != nil {
			return dto.VertexToolResult{}, errs.NewValidationError("arguments do not match the get_summary schema")
		}
		month := dto.MonthOf(today)
		if args.Month != "" {
			if month, err = dto.ParseMonth(args.Month); err != nil {
				return dto.VertexToolResult{}, err
			}
		}
		result, err = s.aggregation.Summarize(ctx, uid, spaceID, month)
		if err != nil {
			return dto.VertexToolResult{}, err
		}

	default:
		return dto.VertexToolResult{}, errs.NewValidationError(fmt.Sprintf("unsupported tool: %s", call.Name))
	}

	payload, err := toMap(result)
	if err != nil {
		return dto.VertexToolResult{}, err
	}
	return dto.VertexToolResult{Name: call.Name, Response: payload}, nil
}

// isToolFeedback reports whether a tool error is something the model can
// act on. Anything else aborts the query.
func isToolFeedback(err error) bool {
	var validation *errs.ValidationError
	var notFound *errs.NotFoundError
	var forbidden *errs.ForbiddenError
	var conflict *errs.ConflictError
	return errors.As(err, &validation) || errors.As(err, &notFound) ||
		errors.As(err, &forbidden) || errors.As(err, &conflict)
}

func draftFromArgs(args dto.AddTransactionArgs, today civil.Date) (dto.TransactionDraft, error) {
	date, err := parseToolDate("date", args.Date, today)
	if err != nil {
		return dto.TransactionDraft{}, err
	}
	draft := dto.TransactionDraft{
		Type:             helpers.Ptr(models.TransactionType(strings.ToUpper(strings.TrimSpace(args.Type)))),
		Amount:           helpers.Ptr(decimal.NewFromFloat(args.Amount).Round(2)),
		Date:             &date,
		Category:         helpers.Ptr(args.Category),
		IncludeInBalance: args.IncludeInBalance,
		Description:      helpers.Ptr(args.Description),
	}
	if args.Status != "" {
		draft.Status = helpers.Ptr(models.TransactionStatus(strings.ToUpper(args.Status)))
	}
	if args.Recurrence != "" {
		draft.Recurrence = helpers.Ptr(models.Recurrence(strings.ToUpper(args.Recurrence)))
	}
	if args.RecurrenceEndDate != "" {
		end, err := civil.ParseDate(args.RecurrenceEndDate)
		if err != nil {
			return dto.TransactionDraft{}, errs.NewValidationError("recurrenceEndDate must be YYYY-MM-DD")
		}
		draft.RecurrenceEndDate = &end
	}
	return draft, nil
}

func filterFromArgs(args dto.GetTransactionsArgs) (dto.TransactionFilter, error) {
	f := dto.TransactionFilter{
		Category: args.Category,
		AddedBy:  args.AddedBy,
		Order:    dto.SortDesc,
		Limit:    args.Limit,
	}
	if args.StartDate != "" {
		d, err := civil.ParseDate(args.StartDate)
		if err != nil {
			return f, errs.NewValidationError("startDate must be YYYY-MM-DD")
		}
		f.From = &d
	}
	if args.EndDate != "" {
		d, err := civil.ParseDate(args.EndDate)
		if err != nil {
			return f, errs.NewValidationError("endDate must be YYYY-MM-DD")
		}
		f.To = &d
	}
	if args.Type != "" {
		f.Type = helpers.Ptr(models.TransactionType(strings.ToUpper(args.Type)))
	}
	if args.Status != "" {
		f.Status = helpers.Ptr(models.TransactionStatus(strings.ToUpper(args.Status)))
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultToolListCap
	case f.Limit > maxToolListCap:
		f.Limit = maxToolListCap
	}
	return f, f.Validate()
}

func parseToolDate(field, value string, fallback civil.Date) (civil.Date, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := civil.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return civil.Date{}, errs.NewValidationError(field + " must be YYYY-MM-DD")
	}
	return d, nil
}

func convertMessagesToContents(history []models.AIMessage, currentMessage string) []dto.VertexContent {
	contents := make([]dto.VertexContent, 0, len(history)+1)

	for _, msg := range history {
		switch msg.Role {
		case "user":
			contents = append(contents, dto.VertexContent{
				Role:  "user",
				Parts: []dto.VertexPart{{Text: &msg.Content}},
			})
		case "assistant":
			if msg.Content != "" {
				contents = append(contents, dto.VertexContent{
					Role:  "model",
					Parts: []dto.VertexPart{{Text: &msg.Content}},
				})
			}
		case "tool":
			// A tool turn is replayed only when both halves survived.
			if msg.ToolName == "" || msg.ToolResult == nil {
				continue
			}
			contents = append(contents,
				dto.VertexContent{
					Role:  "model",
					Parts: []dto.VertexPart{{FunctionCall: &dto.VertexToolCall{Name: msg.ToolName, Args: msg.ToolArgs}}},
				},
				dto.VertexContent{
					Role:  "user",
					Parts: []dto.VertexPart{{FunctionResponse: &dto.VertexToolResult{Name: msg.ToolName, Response: msg.ToolResult}}},
				},
			)
		}
	}

	contents = append(contents, dto.VertexContent{
		Role:  "user",
		Parts: []dto.VertexPart{{Text: &currentMessage}},
	})
	return contents
}

func assistantTools() []dto.VertexTool {
	types := []string{string(models.Income), string(models.Expense)}
	statuses := []string{string(models.StatusActual), string(models.StatusPlanned)}
	return []dto.VertexTool{
		{
			Name: "add_transaction",
			Description: "Record an income or expense in the shared ledger. " +
				"With a recurrence other than NONE, one transaction is stored per occurrence up to recurrenceEndDate.",
			Parameters: &dto.VertexSchema{
				Type: "object",
				Properties: map[string]*dto.VertexSchema{
					"type":              {Type: "string", Enum: types, Description: "INCOME or EXPENSE. Required."},
					"amount":            {Type: "number", Description: "Positive amount. Required."},
					"date":              {Type: "string", Description: "YYYY-MM-DD; defaults to today."},
					"category":          {Type: "string", Description: "Category name, for example Groceries or Salary. Required."},
					"status":            {Type: "string", Enum: statuses, Description: "PLANNED for future or unconfirmed items. Defaults to ACTUAL."},
					"description":       {Type: "string", Description: "Free text note."},
					"recurrence":        {Type: "string", Enum: models.RecurrenceList, Description: "Defaults to NONE."},
					"recurrenceEndDate": {Type: "string", Description: "YYYY-MM-DD last possible occurrence. Required when recurrence is not NONE."},
					"includeInBalance":  {Type: "boolean", Description: "Defaults to true."},
				},
				Required: []string{"type", "amount", "category"},
			},
		},
		{
			Name:        "get_transactions",
			Description: "List transactions, newest first, with optional filters.",
			Parameters: &dto.VertexSchema{
				Type: "object",
				Properties: map[string]*dto.VertexSchema{
					"startDate": {Type: "string", Description: "YYYY-MM-DD inclusive start."},
					"endDate":   {Type: "string", Description: "YYYY-MM-DD inclusive end."},
					"category":  {Type: "string", Description: "Exact category name, case-insensitive."},
					"type":      {Type: "string", Enum: types},
					"status":    {Type: "string", Enum: statuses},
					"addedBy":   {Type: "string", Description: "Member name, or @me for the current user."},
					"limit":     {Type: "integer", Description: "Maximum number of results; defaults to 25."},
				},
			},
		},
		{
			Name:        "get_balance",
			Description: "Running balance at the end of a day, counting both actual and planned transactions.",
			Parameters: &dto.VertexSchema{
				Type: "object",
				Properties: map[string]*dto.VertexSchema{
					"date": {Type: "string", Description: "YYYY-MM-DD; defaults to today."},
				},
			},
		},
		{
			Name:        "get_summary",
			Description: "Monthly totals, projected balance, first cash gap and daily averages.",
			Parameters: &dto.VertexSchema{
				Type: "object",
				Properties: map[string]*dto.VertexSchema{
					"month": {Type: "string", Description: "YYYY-MM; defaults to the current month."},
				},
			},
		},
	}
}

func assistantPrompt(today civil.Date) string {
	return "You are the assistant of a shared household ledger. Use tools to read or record data. " +
		"All amounts, balances and transactions must come from tool results; never invent them. " +
		"Resolve relative dates such as 'yesterday' or 'next Friday' against today's date. " +
		"If the user does not give a category for a new transaction, pick a short common one. " +
		"Answer in the user's language and keep answers short. " +
		"Today is " + today.String() + " (" + today.In(time.UTC).Weekday().String() + ")."
}

func strictAssistantPrompt(today civil.Date) string {
	return assistantPrompt(today) + " You must respond with a valid tool call that matches the schema. " +
		"If required information is missing, ask a clarification question instead of calling a tool."
}

func decodeArgs[T any](args map[string]any) (T, error) {
	var out T
	if len(args) == 0 {
		return out, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func toMap(value any) (map[string]any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

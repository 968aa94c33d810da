package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/forPelevin/blockcut/internal/domain/aiparse"
	"github.com/forPelevin/blockcut/internal/domain/blocks"
	"github.com/forPelevin/blockcut/internal/domain/shorts"
	"github.com/forPelevin/blockcut/internal/domain/templates"
	"github.com/forPelevin/blockcut/internal/types"
	"github.com/forPelevin/blockcut/internal/usecase"
)

func badRequest(c *fiber.Ctx, code string, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

// handleSegment takes a transcript (object or one-item array) and answers
// with the item list to fan out: the blocks, or the transcript itself when the
// video is processed whole.
func (s *Server) handleSegment(c *fiber.Ctx) error {
	tr, err := types.DecodeTranscript(c.Body())
	if err != nil {
		return badRequest(c, "ERR_INVALID_TRANSCRIPT", err)
	}
	res, err := s.d.Usecase.Segment(c.UserContext(), usecase.SegmentInput{Transcript: tr, Config: s.d.Split})
	if err != nil {
		if errors.Is(err, blocks.ErrInvalidConfig) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "ERR_INVALID_SPLIT",
			})
		}
		return err
	}
	c.Set("X-Run-Id", res.RunID)
	c.Set("X-Split-Plan", res.Blocks.Plan.Reason)
	return c.JSON(res.Blocks)
}

type reassembleRequest struct {
	Strategy         string          `json:"strategy"`
	Frame            string          `json:"frame"`
	OverlapThreshold *float64        `json:"overlap_threshold"`
	Resort           *bool           `json:"resort"`
	Results          json.RawMessage `json:"results"`
}

// handleReassemble accepts a bare array of block results (server defaults
// apply) or {"strategy", "frame", "overlap_threshold", "resort", "results"}.
func (s *Server) handleReassemble(c *fiber.Ctx) error {
	body := bytes.TrimSpace(c.Body())
	opts := s.d.Dedup
	raw := body

	if len(body) > 0 && body[0] == '{' {
		var req reassembleRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return badRequest(c, "ERR_INVALID_REQUEST", err)
		}
		if len(req.Results) == 0 {
			return badRequest(c, "ERR_INVALID_REQUEST", errors.New("results is required"))
		}
		var err error
		if opts, err = applyOverrides(opts, req); err != nil {
			return badRequest(c, "ERR_INVALID_OPTIONS", err)
		}
		raw = req.Results
	}

	results, err := types.DecodeBlockResults(raw)
	if err != nil {
		return badRequest(c, "ERR_INVALID_RESULTS", err)
	}
	res, err := s.d.Usecase.Reassemble(c.UserContext(), results, opts)
	if err != nil {
		if errors.Is(err, shorts.ErrInvalidOptions) {
			return badRequest(c, "ERR_INVALID_OPTIONS", err)
		}
		return err
	}
	c.Set("X-Run-Id", res.Stats.RunID)
	return c.JSON(res)
}

func applyOverrides(o shorts.Options, req reassembleRequest) (shorts.Options, error) {
	if req.Strategy != "" {
		st, err := shorts.ParseStrategy(req.Strategy)
		if err != nil {
			return o, err
		}
		if st != o.Strategy {
			o.Frame = ""
		}
		o.Strategy = st
	}
	if req.Frame != "" {
		f, err := shorts.ParseFrame(req.Frame)
		if err != nil {
			return o, err
		}
		o.Frame = f
	}
	if req.OverlapThreshold != nil {
		o.Threshold = *req.OverlapThreshold
	}
	if req.Resort != nil {
		o.Resort = *req.Resort
	}
	return o, o.Validate()
}

// handleParse takes the raw agent text, either as the whole body or as the
// "output" field of a JSON object. With a "block" (one item of /v1/segment's
// answer) next to it, shorts come back as a block result carrying that
// block's metadata. Parse failures are answered with 200 and the structured
// failure so the workflow can route on it.
func (s *Server) handleParse(c *fiber.Ctx) error {
	raw := string(c.Body())
	var wrapped struct {
		Output *string      `json:"output"`
		Block  *types.Block `json:"block"`
	}
	if json.Unmarshal(c.Body(), &wrapped) == nil && wrapped.Output != nil {
		raw = *wrapped.Output
	} else {
		wrapped.Block = nil
	}

	var (
		res aiparse.Result
		out any
	)
	if wrapped.Block != nil {
		res, out = s.d.Usecase.ParseForBlock(raw, *wrapped.Block)
	} else {
		res = s.d.Usecase.Parse(raw)
		out = res.Output()
	}
	if res.OK() {
		c.Set("X-Parse-Kind", string(res.Kind))
		c.Set("X-Parse-Method", string(res.Method))
	} else {
		c.Set("X-Parse-Kind", "error")
	}
	return c.JSON(out)
}

type templateSummary struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	BestFor  []string `json:"best_for"`
}

func (s *Server) handleTemplates(c *fiber.Ctx) error {
	if s.d.Catalog == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "template catalog not loaded")
	}
	out := make([]templateSummary, 0, s.d.Catalog.Len())
	for _, k := range s.d.Catalog.Keys() {
		t, _ := s.d.Catalog.Get(k)
		out = append(out, templateSummary{Key: k, Name: t.Name, Category: t.Category, BestFor: t.BestFor})
	}
	return c.JSON(fiber.Map{"version": s.d.Catalog.Version(), "templates": out})
}

type selectRequest struct {
	TemplateKey string `json:"template_key"`
	Category    string `json:"category"`
	Genre       string `json:"genre"`
}

func (s *Server) handleSelectTemplate(c *fiber.Ctx) error {
	if s.d.Catalog == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "template catalog not loaded")
	}
	var req selectRequest
	if len(bytes.TrimSpace(c.Body())) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return badRequest(c, "ERR_INVALID_REQUEST", err)
		}
	}

	s.rngMu.Lock()
	sel, err := s.d.Catalog.Select(s.d.Rand, templates.Filter{Key: req.TemplateKey, Category: req.Category, Genre: req.Genre})
	s.rngMu.Unlock()
	if err != nil {
		if errors.Is(err, templates.ErrNoTemplate) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error(), "code": "ERR_NO_TEMPLATE"})
		}
		return err
	}
	return c.JSON(sel)
}

func (s *Server) handleRuns(c *fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return badRequest(c, "ERR_INVALID_LIMIT", errors.New("limit must be a positive integer"))
		}
		limit = n
	}
	runs, err := s.d.Usecase.Recent(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(runs)
}

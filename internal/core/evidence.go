package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"coopquality/internal/blob"
	"coopquality/pkg/domain"
)

// Upload is an evidence file body with its media type.
type Upload struct {
	ContentType string
	Body        io.Reader
}

// AttachEvidence uploads a file for one item of an open inspection and
// returns its stored info. The key goes into Observation.EvidenceKey when
// the evaluation is recorded.
func (s *Service) AttachEvidence(ctx context.Context, inspectionID, definitionID, filename string, upload Upload) (blob.Info, error) {
	var info blob.Info
	err := s.instrument(ctx, opAttachEvidence, func(ctx context.Context) (audited, error) {
		if s.opts.evidence == nil {
			return audited{}, domain.ValidationError{Entity: domain.EntityEvaluationResult, Field: "evidence_key", Message: "evidence storage is not configured"}
		}
		err := s.store.View(ctx, func(v domain.TransactionView) error {
			insp, err := requireInspection(v, inspectionID)
			if err != nil {
				return err
			}
			if insp.State.IsTerminal() {
				return invalidInspectionState(insp, "attach evidence to")
			}
			std, err := requireStandard(v, insp.StandardID)
			if err != nil {
				return err
			}
			if _, ok := std.Item(definitionID); !ok {
				return domain.ValidationError{Entity: domain.EntityEvaluationResult, Field: "definition_id", Message: "definition " + definitionID + " is not part of standard " + std.Code}
			}
			return nil
		})
		if err != nil {
			return audited{}, err
		}
		key, err := blob.EvidenceKey(inspectionID, definitionID, filename)
		if err != nil {
			return audited{}, domain.ValidationError{Entity: domain.EntityEvaluationResult, Field: "evidence_key", Message: err.Error()}
		}
		info, err = s.opts.evidence.Put(ctx, key, upload.Body, blob.PutOptions{
			ContentType: upload.ContentType,
			Metadata:    map[string]string{"inspection": inspectionID, "definition": definitionID, "actor": ActorFrom(ctx)},
		})
		if errors.Is(err, blob.ErrExists) {
			return audited{ID: key}, domain.ValidationError{Entity: domain.EntityEvaluationResult, Field: "evidence_key", Message: "evidence " + key + " already exists"}
		}
		return audited{ID: key, Details: map[string]string{"inspection": inspectionID, "size": strconv.FormatInt(info.Size, 10)}}, err
	})
	return info, err
}

// ListEvidence returns the stored evidence of an inspection.
func (s *Service) ListEvidence(ctx context.Context, inspectionID string) ([]blob.Info, error) {
	if s.opts.evidence == nil {
		return nil, nil
	}
	return s.opts.evidence.List(ctx, blob.InspectionPrefix(inspectionID))
}

// OpenEvidence streams a stored evidence file. The caller closes it.
func (s *Service) OpenEvidence(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	if s.opts.evidence == nil {
		return blob.Info{}, nil, domain.NotFoundError{Entity: domain.EntityEvaluationResult, ID: key}
	}
	info, rc, err := s.opts.evidence.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return blob.Info{}, nil, domain.NotFoundError{Entity: domain.EntityEvaluationResult, ID: key}
	}
	return info, rc, err
}

func (s *Service) checkEvidence(ctx context.Context, key string) error {
	if key == "" || s.opts.evidence == nil {
		return nil
	}
	if _, err := s.opts.evidence.Head(ctx, key); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return domain.ValidationError{Entity: domain.EntityEvaluationResult, Field: "evidence_key", Message: "evidence " + key + " was not uploaded"}
		}
		return fmt.Errorf("check evidence %s: %w", key, err)
	}
	return nil
}

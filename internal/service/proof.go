package service

import (
	"time"

	probeerrors "codeprobe/internal/errors"
	"codeprobe/internal/logging"
	"codeprobe/pkg/models"
	"codeprobe/pkg/proof"

	"github.com/google/uuid"
)

func (s *Service) generator(challengeHex string) (*proof.Generator, error) {
	if !s.strict {
		return proof.NewGenerator(challengeHex), nil
	}
	g, err := proof.ParseGenerator(challengeHex)
	if err != nil {
		return nil, s.fail(probeerrors.ErrInvalidChallenge.WithCause(err))
	}
	return g, nil
}

// GenerateProof 生成所有权证明记录（JSON字符串）
func (s *Service) GenerateProof(challengeHex, contractAddress string) (string, error) {
	g, err := s.generator(challengeHex)
	if err != nil {
		return "", err
	}

	record := g.NewRecord(contractAddress)
	encoded, err := record.Encode()
	if err != nil {
		return "", s.fail(probeerrors.ErrSerializationFailed.WithCause(err))
	}

	s.publishProofEvent(models.ProofEventGenerated, record, true)
	return encoded, nil
}

// VerifyProof 验证证明记录
// 非严格模式下任何解析失败都返回false
func (s *Service) VerifyProof(challengeHex, proofJSON string) (bool, error) {
	g, err := s.generator(challengeHex)
	if err != nil {
		return false, err
	}

	record, err := proof.ParseRecord(proofJSON)
	if err != nil {
		s.logger.Debugf("证明记录解析失败: %v", err)
		if s.strict {
			return false, s.fail(probeerrors.ErrMalformedProof.WithCause(err))
		}
		return false, nil
	}

	valid := g.Verify(record)
	s.publishProofEvent(models.ProofEventVerified, record, valid)
	return valid, nil
}

func (s *Service) publishProofEvent(kind string, record *proof.Record, valid bool) {
	event := &models.ProofEvent{
		ID:              uuid.NewString(),
		Kind:            kind,
		ContractAddress: record.ContractAddress,
		ProofHash:       record.ProofHash,
		Timestamp:       record.Timestamp,
		Valid:           valid,
		CreatedAt:       time.Now().UTC(),
	}

	if s.structured != nil {
		logging.NewProofLogger(s.structured, kind, record.ContractAddress).Info("证明事件",
			"proof_hash", record.ProofHash,
			"valid", valid,
		)
	}

	if err := s.output.WriteProofEvent(event); err != nil {
		s.stats.RecordError(probeerrors.AsProbeError(err))
		s.logger.Warnf("输出证明事件失败: %v", err)
	}
}

package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"lambdakit/lib/clients"
	"lambdakit/lib/models"
)

// ErrSolutionNotFound is returned when <solutionId>/solution.json is absent.
var ErrSolutionNotFound = errors.New("solution not found")

// SolutionRepository loads tenant configuration blobs.
type SolutionRepository interface {
	GetSolution(ctx context.Context, solutionID string) (models.Solution, error)
}

// SolutionDao reads solutions from the solution bucket.
type SolutionDao struct {
	S3     clients.S3ClientInterface
	Bucket string
	Logger *logrus.Logger
}

// SolutionKey is the object key holding a solution's configuration.
func SolutionKey(solutionID string) string {
	return solutionID + "/solution.json"
}

func (dao *SolutionDao) GetSolution(ctx context.Context, solutionID string) (models.Solution, error) {
	if solutionID == "" {
		return nil, ErrSolutionNotFound
	}

	body, err := dao.S3.GetObject(ctx, dao.Bucket, SolutionKey(solutionID))
	if err != nil {
		if errors.Is(err, clients.ErrObjectNotFound) {
			return nil, ErrSolutionNotFound
		}
		dao.Logger.WithFields(logrus.Fields{
			"operation":   "GetSolution",
			"solution_id": solutionID,
			"error":       err.Error(),
		}).Error("Failed to read solution")
		return nil, err
	}

	var solution models.Solution
	if err := json.Unmarshal(body, &solution); err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation":   "GetSolution",
			"solution_id": solutionID,
			"error":       err.Error(),
		}).Error("Solution is not valid JSON")
		return nil, fmt.Errorf("failed to parse solution %s: %w", solutionID, err)
	}
	if solution == nil {
		return nil, ErrSolutionNotFound
	}
	return solution, nil
}

// CachedSolutionDao serves solutions from the S3 cache before falling back
// to the solution bucket.
type CachedSolutionDao struct {
	Solutions     SolutionRepository
	Cache         CacheRepository
	ExpireMinutes int
}

func (dao *CachedSolutionDao) GetSolution(ctx context.Context, solutionID string) (models.Solution, error) {
	key := "solutions/" + solutionID
	if solutionID != "" {
		if cached, ok := dao.Cache.GetS3CacheObject(ctx, key); ok {
			return models.Solution(cached), nil
		}
	}

	solution, err := dao.Solutions.GetSolution(ctx, solutionID)
	if err != nil {
		return nil, err
	}
	dao.Cache.SetS3CacheObject(ctx, key, solution, dao.ExpireMinutes)
	return solution, nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"appointment-scheduler/internal/domain/entity"
	domainRepo "appointment-scheduler/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisDoctorKeyPrefix prefixes cached doctor snapshots
const RedisDoctorKeyPrefix = "doctor:profile:"

// CachedDoctorRepository serves doctor snapshots from Redis and falls back
// to the wrapped directory on a miss. Redis failures never reach the caller.
type CachedDoctorRepository struct {
	next        domainRepo.DoctorProfileRepository
	redisClient *redis.Client
	log         *logrus.Logger
	ttl         time.Duration
}

var _ domainRepo.DoctorProfileRepository = (*CachedDoctorRepository)(nil)

func NewCachedDoctorRepository(next domainRepo.DoctorProfileRepository, redisClient *redis.Client, log *logrus.Logger, ttl time.Duration) *CachedDoctorRepository {
	return &CachedDoctorRepository{
		next:        next,
		redisClient: redisClient,
		log:         log,
		ttl:         ttl,
	}
}

func (r *CachedDoctorRepository) FindByUserID(ctx context.Context, doctorID uuid.UUID) (*entity.DoctorProfile, error) {
	key := doctorCacheKey(doctorID)

	raw, err := r.redisClient.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var profile entity.DoctorProfile
		if jsonErr := json.Unmarshal(raw, &profile); jsonErr == nil {
			return &profile, nil
		}
		r.log.Warnf("Discarding unreadable cached doctor %s", doctorID)
	case !errors.Is(err, redis.Nil):
		r.log.Warnf("Failed to read cached doctor %s: %+v", doctorID, err)
	}

	profile, err := r.next.FindByUserID(ctx, doctorID)
	if err != nil || profile == nil {
		return profile, err
	}

	payload, err := json.Marshal(profile)
	if err != nil {
		r.log.Warnf("Failed to encode doctor %s for cache: %+v", doctorID, err)
		return profile, nil
	}
	if err := r.redisClient.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		r.log.Warnf("Failed to cache doctor %s: %+v", doctorID, err)
	}
	return profile, nil
}

// Invalidate drops the cached snapshot of a doctor
func (r *CachedDoctorRepository) Invalidate(ctx context.Context, doctorID uuid.UUID) error {
	if err := r.redisClient.Del(ctx, doctorCacheKey(doctorID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached doctor %s: %w", doctorID, err)
	}
	return nil
}

func doctorCacheKey(doctorID uuid.UUID) string {
	return fmt.Sprintf("%s%s", RedisDoctorKeyPrefix, doctorID)
}

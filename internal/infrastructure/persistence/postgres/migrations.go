package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STATS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create stats tables
-- Version: 001
-- Raw event log plus one bucket table per configured granularity and the
-- shared max-record table. Metric columns are fixed: the metric set is an
-- enumerated part of the engine, not free-form data.

CREATE TABLE IF NOT EXISTS raw_stat_events (
    id BIGSERIAL PRIMARY KEY,
    room VARCHAR(16) NOT NULL,
    user_id VARCHAR(32) NOT NULL,
    end_time TIMESTAMP WITH TIME ZONE NOT NULL,
    energy_harvested BIGINT NOT NULL DEFAULT 0,
    energy_construction BIGINT NOT NULL DEFAULT 0,
    energy_creeps BIGINT NOT NULL DEFAULT 0,
    energy_control BIGINT NOT NULL DEFAULT 0,
    creeps_produced BIGINT NOT NULL DEFAULT 0,
    creeps_lost BIGINT NOT NULL DEFAULT 0,
    power_processed BIGINT NOT NULL DEFAULT 0
);

-- Consolidation prunes by end_time; flushes only append.
CREATE INDEX IF NOT EXISTS idx_raw_stat_events_end_time ON raw_stat_events(end_time);

-- One bucket table per granularity (8, 180 and 1440 minutes). The trailing
-- retention window is enforced by the consolidation queries, not by the
-- schema: old rows simply stop being read.
CREATE TABLE IF NOT EXISTS stat_buckets_8 (
    bucket_index BIGINT NOT NULL,
    user_id VARCHAR(32) NOT NULL,
    room VARCHAR(16) NOT NULL,
    energy_harvested BIGINT NOT NULL DEFAULT 0,
    energy_construction BIGINT NOT NULL DEFAULT 0,
    energy_creeps BIGINT NOT NULL DEFAULT 0,
    energy_control BIGINT NOT NULL DEFAULT 0,
    creeps_produced BIGINT NOT NULL DEFAULT 0,
    creeps_lost BIGINT NOT NULL DEFAULT 0,
    power_processed BIGINT NOT NULL DEFAULT 0,

    PRIMARY KEY (bucket_index, user_id, room)
);

CREATE INDEX IF NOT EXISTS idx_stat_buckets_8_user ON stat_buckets_8(user_id, bucket_index);
CREATE INDEX IF NOT EXISTS idx_stat_buckets_8_room ON stat_buckets_8(room, bucket_index);

CREATE TABLE IF NOT EXISTS stat_buckets_180 (
    bucket_index BIGINT NOT NULL,
    user_id VARCHAR(32) NOT NULL,
    room VARCHAR(16) NOT NULL,
    energy_harvested BIGINT NOT NULL DEFAULT 0,
    energy_construction BIGINT NOT NULL DEFAULT 0,
    energy_creeps BIGINT NOT NULL DEFAULT 0,
    energy_control BIGINT NOT NULL DEFAULT 0,
    creeps_produced BIGINT NOT NULL DEFAULT 0,
    creeps_lost BIGINT NOT NULL DEFAULT 0,
    power_processed BIGINT NOT NULL DEFAULT 0,

    PRIMARY KEY (bucket_index, user_id, room)
);

CREATE INDEX IF NOT EXISTS idx_stat_buckets_180_user ON stat_buckets_180(user_id, bucket_index);
CREATE INDEX IF NOT EXISTS idx_stat_buckets_180_room ON stat_buckets_180(room, bucket_index);

CREATE TABLE IF NOT EXISTS stat_buckets_1440 (
    bucket_index BIGINT NOT NULL,
    user_id VARCHAR(32) NOT NULL,
    room VARCHAR(16) NOT NULL,
    energy_harvested BIGINT NOT NULL DEFAULT 0,
    energy_construction BIGINT NOT NULL DEFAULT 0,
    energy_creeps BIGINT NOT NULL DEFAULT 0,
    energy_control BIGINT NOT NULL DEFAULT 0,
    creeps_produced BIGINT NOT NULL DEFAULT 0,
    creeps_lost BIGINT NOT NULL DEFAULT 0,
    power_processed BIGINT NOT NULL DEFAULT 0,

    PRIMARY KEY (bucket_index, user_id, room)
);

CREATE INDEX IF NOT EXISTS idx_stat_buckets_1440_user ON stat_buckets_1440(user_id, bucket_index);
CREATE INDEX IF NOT EXISTS idx_stat_buckets_1440_room ON stat_buckets_1440(room, bucket_index);

-- Max records across all granularities. Values only ever go up.
CREATE TABLE IF NOT EXISTS stat_max_records (
    interval_min INTEGER NOT NULL,
    bucket_index BIGINT NOT NULL,
    energy_harvested BIGINT NOT NULL DEFAULT 0,
    energy_construction BIGINT NOT NULL DEFAULT 0,
    energy_creeps BIGINT NOT NULL DEFAULT 0,
    energy_control BIGINT NOT NULL DEFAULT 0,
    creeps_produced BIGINT NOT NULL DEFAULT 0,
    creeps_lost BIGINT NOT NULL DEFAULT 0,
    power_processed BIGINT NOT NULL DEFAULT 0,

    PRIMARY KEY (interval_min, bucket_index)
);
`

const migration001Down = `
DROP TABLE IF EXISTS stat_max_records;
DROP TABLE IF EXISTS stat_buckets_1440;
DROP TABLE IF EXISTS stat_buckets_180;
DROP TABLE IF EXISTS stat_buckets_8;
DROP TABLE IF EXISTS raw_stat_events;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create leaderboard tables
-- Version: 002
-- One entry table per scoring mode plus the season registry. Ranks are
-- dense and zero-based; they are rewritten wholesale on every ranking pass.

CREATE TABLE IF NOT EXISTS seasons (
    id VARCHAR(7) PRIMARY KEY,
    name VARCHAR(32) NOT NULL,
    date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_seasons_date ON seasons(date);

CREATE TABLE IF NOT EXISTS leaderboard_world (
    season VARCHAR(7) NOT NULL REFERENCES seasons(id),
    user_id VARCHAR(32) NOT NULL,
    score BIGINT NOT NULL DEFAULT 0,
    rank INTEGER NOT NULL DEFAULT 0,

    PRIMARY KEY (season, user_id)
);

CREATE INDEX IF NOT EXISTS idx_leaderboard_world_rank ON leaderboard_world(season, rank);
CREATE INDEX IF NOT EXISTS idx_leaderboard_world_user ON leaderboard_world(user_id);

CREATE TABLE IF NOT EXISTS leaderboard_power (
    season VARCHAR(7) NOT NULL REFERENCES seasons(id),
    user_id VARCHAR(32) NOT NULL,
    score BIGINT NOT NULL DEFAULT 0,
    rank INTEGER NOT NULL DEFAULT 0,

    PRIMARY KEY (season, user_id)
);

CREATE INDEX IF NOT EXISTS idx_leaderboard_power_rank ON leaderboard_power(season, rank);
CREATE INDEX IF NOT EXISTS idx_leaderboard_power_user ON leaderboard_power(user_id);
`

const migration002Down = `
DROP TABLE IF EXISTS leaderboard_power;
DROP TABLE IF EXISTS leaderboard_world;
DROP TABLE IF EXISTS seasons;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE WORLD
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create world read-model tables
-- Version: 003
-- Room ownership and user display data. In a full deployment the game
-- backend owns and populates these; the stats engine only reads them.
-- Created here so a standalone deployment works out of the box.

CREATE TABLE IF NOT EXISTS world_rooms (
    room VARCHAR(16) PRIMARY KEY,
    owner_id VARCHAR(32),
    level INTEGER NOT NULL DEFAULT 0,
    reservation_user VARCHAR(32),
    reservation_end TIMESTAMP WITH TIME ZONE,
    sign_user VARCHAR(32),
    sign_text VARCHAR(100),
    sign_time TIMESTAMP WITH TIME ZONE,
    safe_mode BOOLEAN NOT NULL DEFAULT FALSE,
    novice_until TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_world_rooms_owner ON world_rooms(owner_id) WHERE owner_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS world_users (
    id VARCHAR(32) PRIMARY KEY,
    username VARCHAR(50) NOT NULL,
    badge JSONB
);
`

const migration003Down = `
DROP TABLE IF EXISTS world_users;
DROP TABLE IF EXISTS world_rooms;
`

package storage

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist. The DDL is restricted to
// types and index forms both Postgres and sqlite understand.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    contribution_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
    contribution_frequency TEXT NOT NULL DEFAULT '',
    min_contribution DOUBLE PRECISION NOT NULL DEFAULT 0,
    max_contribution DOUBLE PRECISION NOT NULL DEFAULT 0,
    allow_partial_contributions INTEGER NOT NULL DEFAULT 1,
    interest_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    max_loan_multiplier DOUBLE PRECISION NOT NULL DEFAULT 3,
    grace_period_days INTEGER NOT NULL DEFAULT 0,
    rules TEXT NOT NULL DEFAULT '{}',
    member_count INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'active',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_memberships (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL REFERENCES groups(id),
    user_id TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'member',
    status TEXT NOT NULL DEFAULT 'active',
    joined_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_membership_active
    ON group_memberships(group_id, user_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_membership_user ON group_memberships(user_id);

CREATE TABLE IF NOT EXISTS contributions (
    id TEXT PRIMARY KEY,
    membership_id TEXT NOT NULL REFERENCES group_memberships(id),
    group_id TEXT NOT NULL REFERENCES groups(id),
    amount DOUBLE PRECISION NOT NULL,
    paid_at INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'completed',
    method TEXT NOT NULL DEFAULT 'cash',
    notes TEXT NOT NULL DEFAULT '',
    recorded_by TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contributions_membership ON contributions(membership_id);
CREATE INDEX IF NOT EXISTS idx_contributions_group ON contributions(group_id);

CREATE TABLE IF NOT EXISTS loans (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL REFERENCES groups(id),
    membership_id TEXT NOT NULL REFERENCES group_memberships(id),
    borrower_id TEXT NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    purpose TEXT NOT NULL,
    duration_months INTEGER NOT NULL,
    interest_rate DOUBLE PRECISION NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    amount_repaid DOUBLE PRECISION NOT NULL DEFAULT 0,
    applied_at INTEGER NOT NULL,
    approved_at INTEGER,
    disbursed_at INTEGER,
    due_date INTEGER NOT NULL,
    approved_by TEXT NOT NULL DEFAULT '',
    disburse_method TEXT NOT NULL DEFAULT '',
    disburse_ref TEXT NOT NULL DEFAULT '',
    disburse_notes TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_loans_group ON loans(group_id);
CREATE INDEX IF NOT EXISTS idx_loans_borrower ON loans(borrower_id);

CREATE TABLE IF NOT EXISTS membership_requests (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL REFERENCES groups(id),
    token TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    invited_role TEXT NOT NULL DEFAULT 'member',
    status TEXT NOT NULL DEFAULT 'pending',
    invited_by TEXT NOT NULL DEFAULT '',
    expires_at INTEGER NOT NULL,
    form_submitted INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requests_group ON membership_requests(group_id);
`

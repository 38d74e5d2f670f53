package timescaledb

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;`

const createHypertableSQL = `SELECT create_hypertable('trial_statistics', 'created_at', if_not_exists => TRUE, migrate_data => TRUE);`

const acceptedViewSQL = `
CREATE OR REPLACE VIEW accepted_trials AS
SELECT s.run_id, s.variable, s.trial, s.nse, s.rsr, s.bias, s.params, r.started_at
FROM trial_statistics s
JOIN isohydro_runs r ON r.id = s.run_id
WHERE s.accepted;
`

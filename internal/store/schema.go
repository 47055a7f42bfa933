package store

const schema = `
CREATE TABLE IF NOT EXISTS packages (
    name TEXT PRIMARY KEY,
    version TEXT NOT NULL,
    location TEXT,
    summary TEXT,
    size_bytes INTEGER,
    file_count INTEGER,
    scanned_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS outdated (
    name TEXT PRIMARY KEY,
    version TEXT NOT NULL,
    latest_version TEXT NOT NULL,
    latest_filetype TEXT,
    checked_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS scans (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    package_count INTEGER,
    outdated_count INTEGER
);

CREATE INDEX IF NOT EXISTS idx_packages_size ON packages(size_bytes);
CREATE INDEX IF NOT EXISTS idx_scans_finished ON scans(finished_at);
`

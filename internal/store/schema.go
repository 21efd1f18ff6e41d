package store

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS stories (
	id				bigserial		PRIMARY KEY,
	external_id		bigint			NOT NULL UNIQUE,
	title			text			NOT NULL,
	url				text			NOT NULL,
	genres			text,
	first_seen		timestamptz		NOT NULL,
	last_updated	timestamptz		NOT NULL
);

CREATE TABLE IF NOT EXISTS story_snapshots (
	id				bigserial			PRIMARY KEY,
	story_id		bigint				NOT NULL REFERENCES stories (id),
	snapshot_date	timestamptz			NOT NULL,
	rating			double precision,
	followers		bigint,
	pages			bigint,
	chapters		bigint,
	views			bigint,
	favorites		bigint,
	ratings_count	bigint
);

CREATE TABLE IF NOT EXISTS scrape_log (
	id				bigserial		PRIMARY KEY,
	run_date		timestamptz		NOT NULL,
	pages_scraped	integer			NOT NULL,
	stories_added	integer			NOT NULL,
	stories_updated	integer			NOT NULL,
	status			text			NOT NULL,
	notes			text			NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS stories_external_id_idx ON stories (external_id);
CREATE INDEX IF NOT EXISTS story_snapshots_story_date_idx ON story_snapshots (story_id, snapshot_date);
CREATE INDEX IF NOT EXISTS story_snapshots_rating_idx ON story_snapshots (rating);
CREATE INDEX IF NOT EXISTS story_snapshots_followers_idx ON story_snapshots (followers);
CREATE INDEX IF NOT EXISTS story_snapshots_views_idx ON story_snapshots (views);
`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS stories (
	id				INTEGER		PRIMARY KEY AUTOINCREMENT,
	external_id		INTEGER		NOT NULL UNIQUE,
	title			TEXT		NOT NULL,
	url				TEXT		NOT NULL,
	genres			TEXT,
	first_seen		TIMESTAMP	NOT NULL,
	last_updated	TIMESTAMP	NOT NULL
);

CREATE TABLE IF NOT EXISTS story_snapshots (
	id				INTEGER		PRIMARY KEY AUTOINCREMENT,
	story_id		INTEGER		NOT NULL REFERENCES stories (id),
	snapshot_date	TIMESTAMP	NOT NULL,
	rating			REAL,
	followers		INTEGER,
	pages			INTEGER,
	chapters		INTEGER,
	views			INTEGER,
	favorites		INTEGER,
	ratings_count	INTEGER
);

CREATE TABLE IF NOT EXISTS scrape_log (
	id				INTEGER		PRIMARY KEY AUTOINCREMENT,
	run_date		TIMESTAMP	NOT NULL,
	pages_scraped	INTEGER		NOT NULL,
	stories_added	INTEGER		NOT NULL,
	stories_updated	INTEGER		NOT NULL,
	status			TEXT		NOT NULL,
	notes			TEXT		NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS stories_external_id_idx ON stories (external_id);
CREATE INDEX IF NOT EXISTS story_snapshots_story_date_idx ON story_snapshots (story_id, snapshot_date);
CREATE INDEX IF NOT EXISTS story_snapshots_rating_idx ON story_snapshots (rating);
CREATE INDEX IF NOT EXISTS story_snapshots_followers_idx ON story_snapshots (followers);
CREATE INDEX IF NOT EXISTS story_snapshots_views_idx ON story_snapshots (views);
`

package store

// Credit types the export distinguishes. Other musicInfo roles are stored
// verbatim but not exported.
const (
	CreditPrimary  = "artists"
	CreditFeatured = "with"
)

// Schema v1 - catalog tables. Names match databases written by earlier
// releases so they keep working.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS Torrents (
  TorrentID INT PRIMARY KEY NOT NULL,
  Name TEXT NOT NULL,
  OriginalYear INT,
  EditionYear INT,
  EditionTitle TEXT,
  Label TEXT,
  CatalogNumber TEXT,
  Size INT NOT NULL,
  Source TEXT,
  Format TEXT NOT NULL,
  Encoding TEXT NOT NULL,
  Log TEXT,
  Cue BOOLEAN,
  Infohash TEXT NOT NULL,
  Description TEXT
);

CREATE TABLE IF NOT EXISTS Artists (
  TorrentID INT NOT NULL,
  ArtistID INT NOT NULL,
  Type TEXT NOT NULL,
  Name TEXT NOT NULL,
  PRIMARY KEY (TorrentID, ArtistID, Type)
);

CREATE TABLE IF NOT EXISTS Tags (
  TorrentID INT NOT NULL,
  Name TEXT NOT NULL,
  PRIMARY KEY (TorrentID, Name)
);

CREATE TABLE IF NOT EXISTS NonMusic (
  TorrentID INT PRIMARY KEY NOT NULL
);

-- Ingest run history
CREATE TABLE IF NOT EXISTS Runs (
  RunID TEXT PRIMARY KEY,
  StartedAt DATETIME NOT NULL,
  CompletedAt DATETIME,
  Overwrite INTEGER DEFAULT 0,
  Candidates INTEGER DEFAULT 0,
  Skipped INTEGER DEFAULT 0,
  Inserted INTEGER DEFAULT 0,
  NonQualifying INTEGER DEFAULT 0,
  Failed INTEGER DEFAULT 0
);
`

// Schema v2 - release 1.1 adds torrent descriptions
const schemaV2 = `ALTER TABLE Torrents ADD COLUMN Description TEXT`

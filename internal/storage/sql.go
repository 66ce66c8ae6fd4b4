package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS flights
(
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid       TEXT      NOT NULL UNIQUE,
    start_time TIMESTAMP NOT NULL,
    source     TEXT      NOT NULL
);

CREATE TABLE IF NOT EXISTS positions
(
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    flight_id INTEGER   NOT NULL REFERENCES flights (id),
    timestamp TIMESTAMP NOT NULL,
    latitude  REAL      NOT NULL,
    longitude REAL      NOT NULL,
    altitude  REAL      NOT NULL,
    airspeed  REAL      NOT NULL
);`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_positions_flight_timestamp ON positions (flight_id, timestamp);`

	insertFlightSQL = `
INSERT INTO flights (uuid,
                     start_time,
                     source)
VALUES (?, ?, ?)`

	selectFlightSQL = `
SELECT id,
       uuid,
       start_time,
       source
FROM flights
WHERE id = ?`

	selectFlightsSQL = `
SELECT id,
       uuid,
       start_time,
       source
FROM flights
ORDER BY start_time`

	insertPositionSQL = `
INSERT INTO positions (flight_id,
                       timestamp,
                       latitude,
                       longitude,
                       altitude,
                       airspeed)
VALUES `

	selectPositionsSQL = `
SELECT timestamp,
       latitude,
       longitude,
       altitude,
       airspeed
FROM positions
WHERE flight_id = ?
  AND timestamp BETWEEN ? AND ?
ORDER BY timestamp, id`

	selectTimeBoundsSQL = `
SELECT MIN(timestamp),
       MAX(timestamp)
FROM positions
WHERE flight_id = ?`
)

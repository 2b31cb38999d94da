package parser

// Handbook is the bundled knowledge text: India-specific emission factors,
// 2024-2025 data.
const Handbook = `EcoRoute Knowledge Base - Indian Transport Emissions:
1. Private SUV (Petrol): Emits 0.213 kg of CO2 per km.
2. Small Hatchback (Petrol): Emits 0.111 kg of CO2 per km.
3. Motorcycle (<125cc): Emits 0.032 kg of CO2 per km.
4. Electric Bus (Indian Grid): Emits roughly 0.012 kg of CO2 per passenger-km.
5. CNG Public Bus: Emits 0.053 kg of CO2 per passenger-km.
6. Metro Rail: The greenest option, emitting only 0.011 kg of CO2 per passenger-km.
7. Walking/Cycling: Zero emissions.
Note: For a 10km trip, an SUV emits 2.13kg CO2, while a Metro trip emits only 0.11kg.
`

const HandbookSource = "builtin:handbook"
